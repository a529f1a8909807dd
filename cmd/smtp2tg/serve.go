package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/infodancer/smtp2tg/internal/config"
	"github.com/infodancer/smtp2tg/internal/logging"
	"github.com/infodancer/smtp2tg/internal/metrics"
	"github.com/infodancer/smtp2tg/internal/notify"
	"github.com/infodancer/smtp2tg/internal/render"
	"github.com/infodancer/smtp2tg/internal/server"
	"github.com/infodancer/smtp2tg/internal/smtp"
)

func runServe() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Credentials are only needed when messages actually leave the host.
	if !flags.DryRun {
		if err := cfg.Telegram.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	collector, metricsServer := metrics.New(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Address: cfg.Metrics.Address,
		Path:    cfg.Metrics.Path,
	})
	if cfg.Metrics.Enabled {
		logger.Info("metrics enabled", "address", cfg.Metrics.Address, "path", cfg.Metrics.Path)
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	notifier := createNotifier(ctx, cfg, flags, logger)

	handler := smtp.Handler(smtp.HandlerConfig{
		Hostname:     cfg.Hostname,
		MaxBodyBytes: cfg.Limits.MaxBodyBytes,
		Dialect:      render.ParseDialect(cfg.Telegram.ParseMode),
		Collector:    collector,
		Notifier:     notifier,
	})

	logger.Info("starting smtp2tg",
		"hostname", cfg.Hostname,
		"listen", cfg.Listen,
		"notifier", notifier.Name(),
		"parse_mode", cfg.Telegram.ParseMode)

	srv := server.New(&cfg, logger)
	srv.SetHandler(handler)
	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// createNotifier builds the delivery backend from the configuration.
// In dry-run mode messages are printed to stdout instead of sent.
func createNotifier(ctx context.Context, cfg config.Config, flags *config.Flags, logger *slog.Logger) notify.Notifier {
	if flags.DryRun {
		logger.Info("dry run: printing messages to stdout")
		return notify.NewStdout()
	}

	tg := notify.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.RequestTimeout())

	// Verify the token before accepting mail. A failed check is logged
	// rather than fatal so the gateway can start while the API is
	// briefly unreachable.
	if err := tg.Ping(ctx); err != nil {
		logger.Warn("telegram getMe check failed", "error", err)
	} else {
		logger.Info("telegram getMe check succeeded", "chat_id", cfg.Telegram.ChatID)
	}

	return tg
}
