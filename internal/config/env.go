// Package config reads flux settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Config holds the settings of `flux run`. Flags override them.
type Config struct {
	// Database is the journal path. Empty disables the journal.
	Database string `env:"FLUX_DB"`

	// LogLevel is the minimum level logged to stderr.
	LogLevel slog.Level `env:"FLUX_LOG_LEVEL" envDefault:"INFO"`

	// StoreName names the store in logs, metrics and the journal.
	StoreName string `env:"FLUX_STORE_NAME" envDefault:"counter"`

	ResetDelay   time.Duration `env:"FLUX_RESET_DELAY" envDefault:"10s"`
	ClampDelay   time.Duration `env:"FLUX_CLAMP_DELAY" envDefault:"5s"`
	TickInterval time.Duration `env:"FLUX_TICK_INTERVAL" envDefault:"1s"`
}

// Load parses Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the store cannot run with.
func (c Config) Validate() error {
	if c.StoreName == "" {
		return fmt.Errorf("store name must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"FLUX_RESET_DELAY":   c.ResetDelay,
		"FLUX_CLAMP_DELAY":   c.ClampDelay,
		"FLUX_TICK_INTERVAL": c.TickInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
