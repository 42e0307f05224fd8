package port

import "context"

// Conn is one accepted full-duplex message stream. Read and Write may be
// called concurrently with each other but each must only be used from a
// single goroutine.
type Conn interface {
	// RemoteAddr is used as the peer identity inside a room.
	RemoteAddr() string
	// Read blocks for the next text frame. Binary frames yield
	// domain.ErrBinaryFrame and leave the connection usable.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	// Ping is issued from the writing goroutine.
	Ping(ctx context.Context) error
	// Close sends a close frame with reason and releases the transport.
	Close(reason string) error
}
