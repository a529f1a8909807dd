package config

import "os"

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over the TOML file but are
// overridden by command-line flags. The token in particular is commonly
// injected through the environment to keep it out of files and argv.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("SMTP2TG_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("SMTP2TG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SMTP2TG_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("SMTP2TG_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SMTP2TG_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SMTP2TG_PARSE_MODE"); v != "" {
		cfg.Telegram.ParseMode = v
	}
	if v := os.Getenv("SMTP2TG_TELEGRAM_API_URL"); v != "" {
		cfg.Telegram.APIURL = v
	}
	return cfg
}
