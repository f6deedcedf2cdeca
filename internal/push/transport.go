package push

import (
	"context"
)

// Transport is one live push connection. Implementations deliver raw frames
// and report closure through ReadFrame errors.
type Transport interface {
	// ReadFrame blocks until the next inbound frame, a transport error, or
	// context cancellation.
	ReadFrame(ctx context.Context) ([]byte, error)

	// Close tears the connection down. Safe to call concurrently with
	// ReadFrame and more than once.
	Close() error
}

// Dialer opens push connections. The production implementation speaks
// websocket; tests supply scripted in-memory transports.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url, token string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, url, token string) (Transport, error) {
	return f(ctx, url, token)
}
