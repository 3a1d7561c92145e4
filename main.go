// Package main implements the prioritease server and its maintenance commands.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/CrowderSoup/prioritease/config"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	envFile    string
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prioritease",
		Short:         "PrioritEase task management API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a prioritease.toml file")
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "path to a .env file, ignored when missing")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newDispatchCmd(), newCreateAdminCmd(), newVersionCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
