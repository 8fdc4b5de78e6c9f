// Package config loads giftswap settings from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/giftswap/internal/exchange"
)

// Config holds the settings for the serve command.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"GIFTSWAP_ADDR" envDefault:":8080"`

	// DataFile is the canonical JSON state file.
	DataFile string `env:"GIFTSWAP_DATA_FILE" envDefault:"data/exchange.json"`

	// AuditDB is the SQLite audit log path. Empty disables the audit log.
	AuditDB string `env:"GIFTSWAP_AUDIT_DB"`

	// AdminSecret guards the admin operations.
	AdminSecret string `env:"GIFTSWAP_ADMIN_SECRET"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config from the environment. It does not validate it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports a startup error for settings the service cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AdminSecret) == "" {
		return exchange.NewError(exchange.KindStartup, "GIFTSWAP_ADMIN_SECRET must be set")
	}
	if strings.TrimSpace(c.DataFile) == "" {
		return exchange.NewError(exchange.KindStartup, "data file path must not be empty")
	}
	if strings.TrimSpace(c.Addr) == "" {
		return exchange.NewError(exchange.KindStartup, "listen address must not be empty")
	}
	return nil
}
