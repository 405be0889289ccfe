// Package transport defines the contract between network front-ends and
// the pipeline.
//
// Each transport (HTTP, gRPC) turns requests into messages, hands them to a
// Service and renders the result. Transports own the result once Handle
// returns and release its audio after writing the response.
package transport

import (
	"context"

	"github.com/nadzzz/voicedesk/internal/message"
)

// Service is implemented by the dispatcher.
type Service interface {
	// Handle runs one query. The caller must Release the result.
	Handle(ctx context.Context, msg *message.Message) (*message.Result, error)

	// Reset clears a session's cached result and cooldown.
	Reset(ctx context.Context, session string) error
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen accepts requests and passes them to svc.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, svc Service) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
