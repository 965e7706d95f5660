package main

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"

	"github.com/xraph/shareledger/types"
)

// Config is read from the environment.
type Config struct {
	LogLevel slog.Level `env:"SHARELEDGER_LOG_LEVEL" envDefault:"warn"`

	// Cap is the decimal default cap for simulated pools. Empty means 2^256-1.
	Cap string `env:"SHARELEDGER_CAP"`
}

// LoadConfig parses Config from environment variables.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.Cap != "" {
		if _, err := types.ParseAmount(c.Cap); err != nil {
			return Config{}, fmt.Errorf("SHARELEDGER_CAP: %w", err)
		}
	}
	return c, nil
}

// DefaultCap returns the configured cap, if any.
func (c Config) DefaultCap() (types.Amount, bool) {
	if c.Cap == "" {
		return types.Amount{}, false
	}
	return types.MustParseAmount(c.Cap), true
}
