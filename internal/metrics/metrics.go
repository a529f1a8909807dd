// Package metrics provides interfaces and implementations for collecting
// gateway metrics. This package defines the Collector interface for
// recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording gateway metrics.
type Collector interface {
	// Connection metrics (no labels - happens before any command)
	ConnectionOpened()
	ConnectionClosed()

	// Command metrics
	CommandProcessed(command string)
	// reason should be "bad_sequence" or "unknown"
	CommandRejected(command string, reason string)

	// Message metrics (sender domain - the gateway has one recipient)
	MessageReceived(senderDomain string, sizeBytes int64)
	BodyTruncated()

	// Delivery metrics; result should be "success" or "failure"
	DeliveryCompleted(result string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
