// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/warp/billing-engine/logger"
)

// Config holds runtime configuration for the server and CLI.
type Config struct {
	Env             string        `envconfig:"BILLING_ENV" default:"development"`
	Addr            string        `envconfig:"BILLING_ADDR" default:"127.0.0.1:5000"`
	DBPath          string        `envconfig:"BILLING_DB_PATH" default:"billing_data.db"`
	ReadTimeout     time.Duration `envconfig:"BILLING_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"BILLING_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"BILLING_SHUTDOWN_TIMEOUT" default:"30s"`

	AllowedOrigins []string `envconfig:"BILLING_ALLOWED_ORIGINS" default:"http://localhost:5000,http://127.0.0.1:5000"`
	RateLimit      int      `envconfig:"BILLING_RATE_LIMIT" default:"120"` // per minute per IP, 0 disables

	IntegrityInterval time.Duration `envconfig:"BILLING_INTEGRITY_INTERVAL" default:"1h"`
	ExportDir         string        `envconfig:"BILLING_EXPORT_DIR" default:"exports"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads a .env file if one exists, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "BILLING_ADDR must not be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "BILLING_DB_PATH must not be empty")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "BILLING_RATE_LIMIT must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"BILLING_READ_TIMEOUT":       c.ReadTimeout,
		"BILLING_WRITE_TIMEOUT":      c.WriteTimeout,
		"BILLING_SHUTDOWN_TIMEOUT":   c.ShutdownTimeout,
		"BILLING_INTEGRITY_INTERVAL": c.IntegrityInterval,
	} {
		if d < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Logging returns the logger settings.
func (c *Config) Logging() logger.LogConfig {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	return lc
}
