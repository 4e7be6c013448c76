// Package transport provides the full-duplex frame connection used by chat
// sessions to reach the remote chatbot.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Read and Write once the connection is closed.
var ErrClosed = errors.New("transport closed")

// Conn is a bidirectional text-frame connection.
type Conn interface {
	// Read blocks until the next frame arrives. A non-nil error means the
	// connection is gone (closed by either side or broken).
	Read(ctx context.Context) ([]byte, error)

	// Write sends one frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections to a resolved endpoint address.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
