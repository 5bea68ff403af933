package events

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config holds event publisher settings.
type Config struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url"`
	ClientName string `toml:"client_name"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled    string
	URL        string
	ClientName string
}

// New creates the configured publisher: NATS when enabled, log-only otherwise.
func New(cfg *Config, logger *slog.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return NewLog(logger), nil
	}
	return Connect(cfg, logger)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites fields from overlay. Enabled always applies.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.ClientName != "" {
		c.ClientName = overlay.ClientName
	}
}

func (c *Config) loadDefaults() {
	if c.URL == "" {
		c.URL = "nats://localhost:4222"
	}
	if c.ClientName == "" {
		c.ClientName = "veriflow"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if enabled, err := strconv.ParseBool(v); err == nil {
				c.Enabled = enabled
			}
		}
	}
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.ClientName != "" {
		if v := os.Getenv(env.ClientName); v != "" {
			c.ClientName = v
		}
	}
}

func (c *Config) validate() error {
	if c.Enabled && c.URL == "" {
		return fmt.Errorf("url required when enabled")
	}
	return nil
}
