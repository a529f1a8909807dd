package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/infodancer/smtp2tg/internal/config"
)

func testConfig(addr string) *config.Config {
	return &config.Config{
		Hostname: "localhost",
		LogLevel: "info",
		Listen:   addr,
		Timeouts: config.TimeoutsConfig{
			Connection: "5m",
			Command:    "1m",
		},
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(":0")

	srv := New(cfg, nil)

	if srv == nil {
		t.Fatal("expected server, got nil")
	}
	if srv.Addr() != nil {
		t.Error("expected nil address before Run")
	}
}

func TestServerRunWithoutHandler(t *testing.T) {
	srv := New(testConfig(":0"), nil)

	err := srv.Run(context.Background())
	if err == nil {
		t.Error("expected error when no handler is configured")
	}
}

func TestServerRun(t *testing.T) {
	// Find an available port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := New(testConfig(addr), nil)
	srv.SetHandler(func(ctx context.Context, conn *Connection) {})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	// Try to connect
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to connect to server: %v", err)
	}
	_ = conn.Close()

	// Stop the server
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServerWithCustomHandler(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := New(testConfig(addr), nil)

	handlerCalled := make(chan struct{})
	srv.SetHandler(func(ctx context.Context, conn *Connection) {
		select {
		case <-handlerCalled:
		default:
			close(handlerCalled)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	// Connect
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	select {
	case <-handlerCalled:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestServerAddr(t *testing.T) {
	srv := New(testConfig("127.0.0.1:0"), nil)
	srv.SetHandler(func(ctx context.Context, conn *Connection) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	addr := srv.Addr()
	if addr == nil {
		t.Fatal("expected bound address after Run")
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("failed to connect via Addr(): %v", err)
	}
	_ = conn.Close()
}

func TestServerShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := New(testConfig(addr), nil)
	srv.SetHandler(func(ctx context.Context, conn *Connection) {})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	// Shutdown should work
	srv.Shutdown()
	cancel()

	select {
	case <-done:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdown")
	}
}

func TestServerDebugLogging(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := testConfig(addr)
	cfg.LogLevel = "debug" // Enable debug logging which triggers wire logging

	srv := New(cfg, nil)
	srv.SetHandler(func(ctx context.Context, conn *Connection) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	// Connect and verify it works with debug logging
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	_ = conn.Close()
}
