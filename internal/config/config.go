// Package config provides configuration management for the gateway.
package config

import (
	"errors"
	"fmt"
	"time"
)

// FileConfig is the top-level wrapper for the configuration file.
// Gateway settings live under a [smtp2tg] table so the file can be
// shared with other tools on the same host.
type FileConfig struct {
	Smtp2tg Config `toml:"smtp2tg"`
}

// Config holds the complete gateway configuration.
type Config struct {
	Hostname string         `toml:"hostname"`
	LogLevel string         `toml:"log_level"`
	Listen   string         `toml:"listen"`
	Limits   LimitsConfig   `toml:"limits"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Telegram TelegramConfig `toml:"telegram"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// LimitsConfig defines resource limits for the gateway.
type LimitsConfig struct {
	// MaxBodyBytes caps the accumulated message body; longer bodies are
	// truncated to exactly this many bytes before rendering.
	MaxBodyBytes int `toml:"max_body_bytes"`
}

// TimeoutsConfig defines timeout durations as parseable strings.
type TimeoutsConfig struct {
	Connection string `toml:"connection"`
	Command    string `toml:"command"`
}

// TelegramConfig holds the destination chat credentials and formatting.
type TelegramConfig struct {
	Token     string `toml:"token"`
	ChatID    string `toml:"chat_id"`
	ParseMode string `toml:"parse_mode"`
	APIURL    string `toml:"api_url"`
	Timeout   string `toml:"timeout"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "smtp2tg",
		LogLevel: "info",
		Listen:   ":2525",
		Limits: LimitsConfig{
			MaxBodyBytes: 4096,
		},
		Timeouts: TimeoutsConfig{
			Connection: "5m",
			Command:    "1m",
		},
		Telegram: TelegramConfig{
			ParseMode: "MarkdownV2",
			APIURL:    "https://api.telegram.org",
			Timeout:   "10s",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
	}
}

// Validate checks the structural parts of the configuration.
// Telegram credentials are validated separately so dry runs can
// operate without them.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if c.Listen == "" {
		return errors.New("listen address is required")
	}

	if c.Limits.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be positive")
	}

	if c.Timeouts.Connection != "" {
		if _, err := time.ParseDuration(c.Timeouts.Connection); err != nil {
			return fmt.Errorf("invalid connection timeout: %w", err)
		}
	}

	if c.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Telegram.Timeout != "" {
		if _, err := time.ParseDuration(c.Telegram.Timeout); err != nil {
			return fmt.Errorf("invalid telegram timeout: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// Validate checks that the destination credentials are present.
// Missing values are a startup-time fatal, never a per-session error.
func (c *TelegramConfig) Validate() error {
	if c.Token == "" {
		return errors.New("telegram token is required")
	}
	if c.ChatID == "" {
		return errors.New("telegram chat_id is required")
	}
	if c.APIURL == "" {
		return errors.New("telegram api_url is required")
	}
	return nil
}

// ConnectionTimeout returns the idle connection timeout as a time.Duration.
// Returns 5 minutes if not configured or invalid.
func (c *TimeoutsConfig) ConnectionTimeout() time.Duration {
	if c.Connection == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.Connection)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// CommandTimeout returns the per-command timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	if c.Command == "" {
		return 1 * time.Minute
	}
	d, err := time.ParseDuration(c.Command)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}

// RequestTimeout returns the outbound API request timeout.
// Returns 10 seconds if not configured or invalid.
func (c *TelegramConfig) RequestTimeout() time.Duration {
	if c.Timeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
