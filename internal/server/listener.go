package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/infodancer/smtp2tg/internal/logging"
)

// ConnectionHandler is called for each new connection.
// It receives the context and connection, and should handle the SMTP session.
type ConnectionHandler func(ctx context.Context, conn *Connection)

// Listener manages a single TCP listener for accepting SMTP connections.
type Listener struct {
	address string
	connCfg ConnectionConfig
	handler ConnectionHandler
	logger  *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// ListenerConfig holds configuration for creating a new Listener.
type ListenerConfig struct {
	Address        string
	IdleTimeout    time.Duration
	CommandTimeout time.Duration
	LogWire        bool
	Logger         *slog.Logger
	Handler        ConnectionHandler
}

// NewListener creates a new Listener with the given configuration.
func NewListener(cfg ListenerConfig) *Listener {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		address: cfg.Address,
		connCfg: ConnectionConfig{
			IdleTimeout:    cfg.IdleTimeout,
			CommandTimeout: cfg.CommandTimeout,
			LogWire:        cfg.LogWire,
			Logger:         logger,
		},
		handler: cfg.Handler,
		logger:  logging.WithListener(logger, cfg.Address),
	}
}

// Start binds the listening socket and accepts connections.
// It blocks until the context is cancelled or the accept loop fails.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.address)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()

	l.logger.Info("listener started",
		slog.String("address", ln.Addr().String()),
	)

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- l.acceptLoop(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-acceptErr:
		runErr = err
	}

	l.logger.Info("listener shutting down")

	// Close the listener to stop accepting new connections
	if err := l.Close(); err != nil {
		l.logger.Debug("error closing listener",
			slog.String("error", err.Error()),
		)
	}

	// Wait for all connections to complete
	l.wg.Wait()

	l.logger.Info("listener stopped")
	return runErr
}

// acceptLoop accepts connections until the listener is closed.
// It returns nil on deliberate close and the accept error otherwise.
func (l *Listener) acceptLoop(ctx context.Context) error {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()

			if closed {
				return nil
			}

			// Check if it's a temporary error
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				l.logger.Warn("temporary accept error",
					slog.String("error", err.Error()),
				)
				time.Sleep(5 * time.Millisecond)
				continue
			}

			l.logger.Error("accept error",
				slog.String("error", err.Error()),
			)
			return err
		}

		// Handle connection in its own goroutine
		l.wg.Add(1)
		go l.handleConnection(ctx, conn)
	}
}

// handleConnection wraps a connection and calls the handler.
func (l *Listener) handleConnection(ctx context.Context, netConn net.Conn) {
	defer l.wg.Done()

	// Create connection wrapper
	conn := NewConnection(netConn, l.connCfg)

	conn.Logger().Info("connection accepted")

	// Create connection-specific context
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Attach logger to context
	connCtx = logging.NewContext(connCtx, conn.Logger())

	// Set initial idle timeout
	if err := conn.ResetIdleTimeout(); err != nil {
		conn.Logger().Error("failed to set initial timeout",
			slog.String("error", err.Error()),
		)
		_ = conn.Close()
		return
	}

	// Start idle monitor
	go conn.IdleMonitor(connCtx)

	// Call the connection handler
	if l.handler != nil {
		l.handler(connCtx, conn)
	}

	_ = conn.Close()
	conn.Logger().Info("connection closed")
}

// Close stops the listener from accepting new connections.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}

// Address returns the configured listen address.
func (l *Listener) Address() string {
	return l.address
}

// Addr returns the bound address, or nil before Start.
// Useful when the configured address uses port 0.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}
