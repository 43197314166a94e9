// Package transport defines the interface for pluggable request front-ends.
//
// Each front-end (currently HTTP) implements this interface and is handed
// the dispatcher's Handle function. The dispatcher doesn't care how
// utterances arrive; it only works with the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/nova/internal/message"
)

// Handler processes an incoming request and returns a reply. It never
// fails: every request gets text back.
type Handler func(ctx context.Context, req *message.Request) *message.Reply

// Transport is the interface that every front-end adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "http").
	Name() string

	// Listen starts accepting requests and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
