package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrowderSoup/prioritease/config"
	"github.com/CrowderSoup/prioritease/database"
	"github.com/CrowderSoup/prioritease/services"
	"github.com/CrowderSoup/prioritease/validation"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database.Path, newLogger(cmd))
			if err != nil {
				return err
			}
			defer database.Close(db)
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.Database.Path)
			return nil
		},
	}
}

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver every due notification once and exit",
		Long: "Deliver every due notification once and exit. Only push delivery is available " +
			"outside the server, so TELEGRAM_TOKEN must be set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Push.TelegramToken == "" {
				return errors.New("no delivery channel configured: set TELEGRAM_TOKEN")
			}
			logger := newLogger(cmd)
			push, err := services.NewTelegramChannel(cfg.Push.TelegramToken)
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer database.Close(db)

			dispatcher := services.NewDispatcher(database.NewStore(db), cfg.Dispatch.StatusPolicy, logger, push)
			results, err := dispatcher.DispatchDue(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprintf(out, "notification %d: %s\n", res.Notification.ID, res.Notification.Status)
			}
			fmt.Fprintf(out, "dispatched %d notifications\n", len(results))
			return nil
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var auth config.Auth
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the admin account unless an enabled account owns its email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if auth.AdminUsername != "" {
				cfg.Auth.AdminUsername = auth.AdminUsername
			}
			if auth.AdminEmail != "" {
				cfg.Auth.AdminEmail = auth.AdminEmail
			}
			if auth.AdminPassword != "" {
				cfg.Auth.AdminPassword = auth.AdminPassword
			}
			if !cfg.HasAdmin() {
				return errors.New("admin email and password are required")
			}

			db, err := database.Open(cfg.Database.Path, newLogger(cmd))
			if err != nil {
				return err
			}
			defer database.Close(db)

			created, err := ensureAdmin(cmd.Context(), database.NewStore(db), cfg.Auth)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", cfg.Auth.AdminEmail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "account %s already exists\n", cfg.Auth.AdminEmail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&auth.AdminUsername, "username", "", "admin username (default from ADMIN_USERNAME)")
	cmd.Flags().StringVar(&auth.AdminEmail, "email", "", "admin email (default from ADMIN_EMAIL)")
	cmd.Flags().StringVar(&auth.AdminPassword, "password", "", "admin password (default from ADMIN_PASSWORD)")
	return cmd
}

// ensureAdmin registers the configured admin unless an enabled account owns its email.
func ensureAdmin(ctx context.Context, store *database.Store, auth config.Auth) (bool, error) {
	in, err := validation.Registration(validation.Bag{
		"username": auth.AdminUsername,
		"email":    auth.AdminEmail,
		"password": auth.AdminPassword,
	})
	if err != nil {
		return false, err
	}

	_, err = store.FindUserByEmail(ctx, in.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}

	hash, err := services.HashPassword(in.Password)
	if err != nil {
		return false, err
	}
	admin := &database.User{Username: in.Username, Email: in.Email, Password: hash, Admin: true}
	if err := store.Register(ctx, admin); err != nil {
		return false, err
	}
	return true, nil
}
