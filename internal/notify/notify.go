// Package notify delivers rendered messages to a messaging service.
package notify

import (
	"context"

	"github.com/infodancer/smtp2tg/internal/render"
)

// Notifier is the interface for message delivery backends.
type Notifier interface {
	// Name returns the name of this notifier for logging/metrics.
	Name() string

	// Send delivers a rendered message to the destination.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg render.Message) error
}
