package smtp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/infodancer/smtp2tg/internal/logging"
	"github.com/infodancer/smtp2tg/internal/metrics"
	"github.com/infodancer/smtp2tg/internal/notify"
	"github.com/infodancer/smtp2tg/internal/render"
	"github.com/infodancer/smtp2tg/internal/server"
)

// HandlerConfig holds the settings and collaborators for the SMTP handler.
type HandlerConfig struct {
	// Hostname appears in the greeting banner and EHLO/HELO acknowledgements.
	Hostname string
	// MaxBodyBytes caps the accumulated body text (0 uses the default).
	MaxBodyBytes int
	// Dialect selects the markup the renderer produces.
	Dialect render.Dialect
	// Collector records metrics (nil for no-op).
	Collector metrics.Collector
	// Notifier forwards each completed message.
	Notifier notify.Notifier
}

// Handler returns a ConnectionHandler that processes SMTP commands and
// forwards every completed message through the configured notifier.
func Handler(cfg HandlerConfig) server.ConnectionHandler {
	registry := NewRegistry(cfg.Hostname)

	collector := cfg.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	return func(ctx context.Context, conn *server.Connection) {
		logger := logging.FromContext(ctx)

		collector.ConnectionOpened()
		defer collector.ConnectionClosed()

		session := NewSession(SessionConfig{MaxBodyBytes: cfg.MaxBodyBytes})

		// Send greeting
		if err := writeResponse(conn, 220, cfg.Hostname+" ready"); err != nil {
			logger.Debug("failed to send greeting", "error", err.Error())
			return
		}
		if err := conn.ResetIdleTimeout(); err != nil {
			logger.Debug("failed to reset idle timeout", "error", err.Error())
			return
		}

		// Command loop
		for {
			if err := conn.SetCommandTimeout(); err != nil {
				logger.Debug("failed to set command timeout", "error", err.Error())
				return
			}

			line, err := conn.Reader().ReadString('\n')
			if err != nil {
				if err != io.EOF {
					logger.Debug("failed to read line", "error", err.Error())
				}
				return
			}
			line = strings.TrimRight(line, " \t\r\n")

			// In DATA mode every line is message content until the sentinel.
			if session.InData() {
				if line == "." {
					finishMessage(ctx, session, cfg.Dialect, collector, cfg.Notifier, logger)
					session.SetState(StateDone)
					if err := writeResponse(conn, 250, "Message accepted"); err != nil {
						logger.Debug("failed to write response", "error", err.Error())
						return
					}
				} else {
					// Dot-stuffed lines lose their leading dot.
					session.ConsumeDataLine(strings.TrimPrefix(line, "."))
				}
				if err := conn.ResetIdleTimeout(); err != nil {
					logger.Debug("failed to reset idle timeout", "error", err.Error())
				}
				continue
			}

			// Match command
			cmd, matches, err := registry.Match(line)
			if err != nil {
				// Unmatched verbs get a fixed label to bound metric cardinality.
				collector.CommandRejected("unknown", "unknown")
				if err := writeResponse(conn, 502, "Command not supported"); err != nil {
					logger.Debug("failed to write response", "error", err.Error())
					return
				}
				if err := conn.ResetIdleTimeout(); err != nil {
					logger.Debug("failed to reset idle timeout", "error", err.Error())
				}
				continue
			}

			// Execute command
			result, execErr := cmd.Execute(ctx, session, matches)
			if execErr != nil {
				logger.Debug("command execution failed", "error", execErr.Error())
				if err := writeResponse(conn, 451, "Requested action aborted"); err != nil {
					logger.Debug("failed to write response", "error", err.Error())
					return
				}
				if err := conn.ResetIdleTimeout(); err != nil {
					logger.Debug("failed to reset idle timeout", "error", err.Error())
				}
				continue
			}

			name := commandName(line)
			if result.Code == 503 {
				collector.CommandRejected(name, "bad_sequence")
			} else {
				collector.CommandProcessed(name)
			}

			// Write response
			if err := writeResponse(conn, result.Code, result.Message); err != nil {
				logger.Debug("failed to write response", "error", err.Error())
				return
			}

			if err := conn.ResetIdleTimeout(); err != nil {
				logger.Debug("failed to reset idle timeout", "error", err.Error())
			}

			// Check for QUIT command
			if result.Code == 221 {
				return
			}
		}
	}
}

// finishMessage renders the captured message and forwards it through the
// notifier. Delivery failures are logged and counted, never surfaced to the
// SMTP client: from the client's perspective the mail was received.
func finishMessage(ctx context.Context, session *Session, dialect render.Dialect, collector metrics.Collector, notifier notify.Notifier, logger *slog.Logger) {
	fields := session.Fields()

	if session.Truncated() {
		collector.BodyTruncated()
	}
	collector.MessageReceived(senderDomain(session.Sender()), int64(len(session.Body())))

	msg := render.Render(dialect, render.Fields{
		From:    fields.From,
		To:      fields.To,
		Subject: fields.Subject,
		Body:    session.Body(),
	})

	if notifier == nil {
		collector.DeliveryCompleted("failure")
		logger.Debug("no notifier configured, dropping message")
		return
	}

	if err := notifier.Send(ctx, msg); err != nil {
		collector.DeliveryCompleted("failure")
		logger.Error("notification failed",
			slog.String("notifier", notifier.Name()),
			slog.String("error", err.Error()))
		return
	}

	collector.DeliveryCompleted("success")
	logger.Info("message forwarded",
		slog.String("notifier", notifier.Name()),
		slog.String("subject", fields.Subject),
		slog.Int("body_bytes", len(session.Body())))
}

// writeResponse writes an SMTP response line to the connection.
func writeResponse(conn *server.Connection, code int, message string) error {
	_, err := fmt.Fprintf(conn.Writer(), "%d %s\r\n", code, message)
	if err != nil {
		return err
	}
	return conn.Flush()
}

// senderDomain extracts the domain from an envelope sender for metrics labels.
func senderDomain(sender string) string {
	if sender == "" {
		return "unknown"
	}
	if idx := strings.LastIndex(sender, "@"); idx >= 0 {
		return sender[idx+1:]
	}
	return "unknown"
}

// commandName extracts the command verb from an SMTP line for metrics labels.
func commandName(line string) string {
	line = strings.ToUpper(line)
	if idx := strings.Index(line, " "); idx > 0 {
		return line[:idx]
	}
	return line
}
