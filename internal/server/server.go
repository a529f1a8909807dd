package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/infodancer/smtp2tg/internal/config"
)

// Server runs the gateway's listener and hands connections to its handler.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	handler ConnectionHandler

	mu       sync.Mutex
	listener *Listener
}

// New creates a new Server with the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// SetHandler sets the connection handler. Must be called before Run.
func (s *Server) SetHandler(handler ConnectionHandler) {
	s.handler = handler
}

// Run binds the listening socket and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("no connection handler configured")
	}

	listener := NewListener(ListenerConfig{
		Address:        s.cfg.Listen,
		IdleTimeout:    s.cfg.Timeouts.ConnectionTimeout(),
		CommandTimeout: s.cfg.Timeouts.CommandTimeout(),
		LogWire:        s.cfg.LogLevel == "debug",
		Logger:         s.logger,
		Handler:        s.handler,
	})

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("starting server",
		slog.String("hostname", s.cfg.Hostname),
		slog.String("listen", s.cfg.Listen),
	)

	err := listener.Start(ctx)

	s.logger.Info("server stopped")
	return err
}

// Shutdown stops accepting new connections.
// Run returns once in-flight sessions complete.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Addr returns the bound listener address, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener == nil {
		return nil
	}
	return listener.Addr()
}
