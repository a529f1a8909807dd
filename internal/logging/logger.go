// Package logging provides centralized logging for the gateway.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// contextKey is used for storing loggers in context.
type contextKey struct{}

var loggerKey = contextKey{}

// connectionCounter is used to generate unique connection IDs.
var connectionCounter atomic.Uint64

// NewLogger creates a new slog.Logger with the specified level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}

// WithConnection returns a new logger with connection-specific attributes.
// It generates a unique connection ID for log correlation.
func WithConnection(logger *slog.Logger, remoteAddr string) *slog.Logger {
	connID := connectionCounter.Add(1)
	return logger.With(
		slog.Uint64("conn_id", connID),
		slog.String("remote_addr", remoteAddr),
	)
}

// WithListener returns a new logger with listener-specific attributes.
func WithListener(logger *slog.Logger, address string) *slog.Logger {
	return logger.With(slog.String("listener", address))
}

// FromContext retrieves the logger from the context.
// Returns the default logger if none is found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// NewContext returns a new context with the logger attached.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WireWriter wraps an io.Writer to log all data written to a client.
// Used when debugging full SMTP exchanges.
type WireWriter struct {
	w      io.Writer
	logger *slog.Logger
}

// NewWireWriter creates a writer that logs outbound protocol data.
func NewWireWriter(w io.Writer, logger *slog.Logger) *WireWriter {
	return &WireWriter{
		w:      w,
		logger: logger,
	}
}

// Write writes data and logs it.
func (ww *WireWriter) Write(p []byte) (n int, err error) {
	n, err = ww.w.Write(p)
	if n > 0 {
		ww.logger.Debug("wire",
			slog.String("direction", "send"),
			slog.String("data", string(p[:n])),
		)
	}
	return n, err
}

// WireReader wraps an io.Reader to log all data read from a client.
type WireReader struct {
	r      io.Reader
	logger *slog.Logger
}

// NewWireReader creates a reader that logs inbound protocol data.
func NewWireReader(r io.Reader, logger *slog.Logger) *WireReader {
	return &WireReader{
		r:      r,
		logger: logger,
	}
}

// Read reads data and logs it.
func (wr *WireReader) Read(p []byte) (n int, err error) {
	n, err = wr.r.Read(p)
	if n > 0 {
		wr.logger.Debug("wire",
			slog.String("direction", "recv"),
			slog.String("data", string(p[:n])),
		)
	}
	return n, err
}
