// Package config loads server settings from a TOML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultJWTSecret is used when no secret is configured. Only suitable for development.
const DefaultJWTSecret = "your-default-secret-key-change-in-production"

// Dispatch status policies.
const (
	PolicyLast = "last"
	PolicyAny  = "any"
	PolicyAll  = "all"
)

// Config represents the prioritease.toml configuration file.
type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Auth     Auth     `toml:"auth"`
	SMTP     SMTP     `toml:"smtp"`
	Push     Push     `toml:"push"`
	Dispatch Dispatch `toml:"dispatch"`
	Storage  Storage  `toml:"storage"`
}

// Server contains HTTP listener settings.
type Server struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed-origins"`
}

// Database contains the SQLite database location.
type Database struct {
	// Path is a file path or a sqlite DSN ("file:...").
	Path string `toml:"path"`
}

// Auth contains the token signing secret and the bootstrap admin account.
type Auth struct {
	JWTSecret     string `toml:"jwt-secret"`
	AdminUsername string `toml:"admin-username"`
	AdminEmail    string `toml:"admin-email"`
	AdminPassword string `toml:"admin-password"`
}

// SMTP contains outbound mail settings. Mail is logged instead of sent when Host is empty.
type SMTP struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// Push contains push-messaging settings.
type Push struct {
	TelegramToken string `toml:"telegram-token"`
}

// Dispatch controls notification delivery.
type Dispatch struct {
	// Interval between sweeps for due notifications, e.g. "1m". Empty disables the sweep.
	Interval string `toml:"interval"`
	// StatusPolicy is one of "last", "any" or "all".
	StatusPolicy string `toml:"status-policy"`

	Every time.Duration `toml:"-"`
}

// Storage contains the profile picture upload directory.
type Storage struct {
	UploadDir string `toml:"upload-dir"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:           "3001",
			AllowedOrigins: []string{"*"},
		},
		Database: Database{Path: "prioritease.db"},
		Auth: Auth{
			JWTSecret:     DefaultJWTSecret,
			AdminUsername: "admin",
		},
		Dispatch: Dispatch{StatusPolicy: PolicyLast},
		Storage:  Storage{UploadDir: "uploads"},
	}
}

// Load builds the configuration. The TOML file at path is optional when path is empty;
// values from envFile and the process environment override it.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if envFile != "" {
		if err := LoadEnv(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	if origins := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	setString(&cfg.Database.Path, "DATABASE_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.AdminUsername, "ADMIN_USERNAME")
	setString(&cfg.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&cfg.Auth.AdminPassword, "ADMIN_PASSWORD")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.SMTP.From, "SMTP_FROM")
	setString(&cfg.Push.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.Dispatch.Interval, "DISPATCH_INTERVAL")
	setString(&cfg.Dispatch.StatusPolicy, "DISPATCH_STATUS_POLICY")
	setString(&cfg.Storage.UploadDir, "UPLOAD_DIR")
}

func setString(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server port is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database path is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("jwt secret is required")
	}

	switch c.Dispatch.StatusPolicy {
	case PolicyLast, PolicyAny, PolicyAll:
	default:
		return fmt.Errorf("invalid dispatch status policy %q", c.Dispatch.StatusPolicy)
	}

	c.Dispatch.Every = 0
	if interval := strings.TrimSpace(c.Dispatch.Interval); interval != "" {
		every, err := time.ParseDuration(interval)
		if err != nil || every <= 0 {
			return fmt.Errorf("invalid dispatch interval %q", c.Dispatch.Interval)
		}
		c.Dispatch.Every = every
	}
	return nil
}

// HasAdmin reports whether a bootstrap admin account is configured.
func (c *Config) HasAdmin() bool {
	return c.Auth.AdminEmail != "" && c.Auth.AdminPassword != ""
}
