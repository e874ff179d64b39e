// Package config provides environment-driven configuration for the auth core.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config represents the complete auth server configuration.
type Config struct {
	// DatabaseURL is the DSN for the relational store (required).
	DatabaseURL string

	// ListenAddr is the TCP address the server binds.
	ListenAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is one of text, json.
	LogFormat string

	// HandshakeTimeout bounds the identity+challenge exchange (spec.md §5).
	HandshakeTimeout time.Duration
}

// Defaults mirrored from spec.md §6 ("Listen address", "Environment").
const (
	DefaultListenAddr       = "0.0.0.0:8080"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
	DefaultHandshakeTimeout = 10 * time.Second
)

// Load reads configuration from the process environment. DATABASE_URL is the
// only variable the core requires (spec.md §6); everything else has a
// default so the server starts with no further setup.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ListenAddr:       envOrDefault("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:         envOrDefault("LOG_LEVEL", DefaultLogLevel),
		LogFormat:        envOrDefault("LOG_FORMAT", DefaultLogFormat),
		HandshakeTimeout: DefaultHandshakeTimeout,
	}

	if raw := os.Getenv("HANDSHAKE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid HANDSHAKE_TIMEOUT: %w", err)
		}
		cfg.HandshakeTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate collects every configuration violation before returning, rather
// than failing on the first one.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}
	if !isValidLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.LogLevel))
	}
	if !isValidLogFormat(c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid LOG_FORMAT: %s (must be text or json)", c.LogFormat))
	}
	if c.HandshakeTimeout <= 0 {
		errs = append(errs, "HANDSHAKE_TIMEOUT must be positive")
	}

	if len(errs) == 0 {
		return nil
	}

	msg := "invalid configuration:"
	for _, e := range errs {
		msg += "\n  - " + e
	}
	return fmt.Errorf("%s", msg)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
