package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath    string
	Hostname      string
	LogLevel      string
	Listen        string
	Token         string
	ChatID        string
	ParseMode     string
	MetricsListen string
	Verbose       bool
	DryRun        bool
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./smtp2tg.toml", "Path to configuration file")
	flag.StringVar(&f.Hostname, "hostname", "", "Name announced in the SMTP banner")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.Listen, "listen", "", "SMTP listen address")
	flag.StringVar(&f.Token, "token", "", "Telegram bot token")
	flag.StringVar(&f.ChatID, "chat-id", "", "Telegram chat id to deliver to")
	flag.StringVar(&f.ParseMode, "parse-mode", "", "Message markup dialect (MarkdownV2 or HTML)")
	flag.StringVar(&f.MetricsListen, "metrics-listen", "", "Enable Prometheus metrics on this address")
	flag.BoolVar(&f.Verbose, "verbose", false, "Log protocol exchanges (same as -log-level debug)")
	flag.BoolVar(&f.Verbose, "v", false, "Shorthand for -verbose")
	flag.BoolVar(&f.DryRun, "dry-run", false, "Print rendered messages to stdout instead of sending")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	// Merge file config into defaults
	cfg = mergeConfig(cfg, fileConfig.Smtp2tg)

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override file and environment values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.Verbose {
		cfg.LogLevel = "debug"
	}

	if f.Listen != "" {
		cfg.Listen = f.Listen
	}

	if f.Token != "" {
		cfg.Telegram.Token = f.Token
	}

	if f.ChatID != "" {
		cfg.Telegram.ChatID = f.ChatID
	}

	if f.ParseMode != "" {
		cfg.Telegram.ParseMode = f.ParseMode
	}

	if f.MetricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.MetricsListen
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// applies environment overrides, then applies flag overrides.
// Precedence: defaults < file < environment < flags.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.Listen != "" {
		dst.Listen = src.Listen
	}

	if src.Limits.MaxBodyBytes > 0 {
		dst.Limits.MaxBodyBytes = src.Limits.MaxBodyBytes
	}

	if src.Timeouts.Connection != "" {
		dst.Timeouts.Connection = src.Timeouts.Connection
	}

	if src.Timeouts.Command != "" {
		dst.Timeouts.Command = src.Timeouts.Command
	}

	if src.Telegram.Token != "" {
		dst.Telegram.Token = src.Telegram.Token
	}

	if src.Telegram.ChatID != "" {
		dst.Telegram.ChatID = src.Telegram.ChatID
	}

	if src.Telegram.ParseMode != "" {
		dst.Telegram.ParseMode = src.Telegram.ParseMode
	}

	if src.Telegram.APIURL != "" {
		dst.Telegram.APIURL = src.Telegram.APIURL
	}

	if src.Telegram.Timeout != "" {
		dst.Telegram.Timeout = src.Telegram.Timeout
	}

	// Metrics: enabled is a boolean, so merge only an explicit true
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}

	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	return dst
}
