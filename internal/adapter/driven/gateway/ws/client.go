package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options bound the resources a single connection may use.
type Options struct {
	// MaxMessageSize caps an inbound frame. Zero leaves it unlimited.
	MaxMessageSize int64
	// PongWait is how long the peer may stay silent before reads fail. Every
	// pong extends it. Zero disables the read deadline.
	PongWait time.Duration
	// WriteWait bounds each write.
	WriteWait time.Duration
}

// Conn adapts a gorilla websocket connection to port.Conn. gorilla allows one
// concurrent reader and one concurrent writer, which is exactly how a session
// uses it.
type Conn struct {
	conn      *websocket.Conn
	opts      Options
	closeOnce sync.Once
	closeErr  error

	// readMu orders pong deadline extensions against read cancellation.
	readMu        sync.Mutex
	readCancelled bool
}

func NewConn(conn *websocket.Conn, opts Options) *Conn {
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	c := &Conn{conn: conn, opts: opts}
	if opts.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		conn.SetPongHandler(c.onPong)
	}
	return c
}

// onPong extends the read deadline unless a read has been cancelled, in
// which case the expired deadline must stay in place.
func (c *Conn) onPong(string) error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	if c.readCancelled {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
}

// cancelRead unblocks a pending read. The connection is not readable again
// afterwards.
func (c *Conn) cancelRead() {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.readCancelled = true
	_ = c.conn.SetReadDeadline(time.Now())
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, c.cancelRead)
	defer stop()

	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, translate(err)
	}
	if mt != websocket.TextMessage {
		return nil, domain.ErrBinaryFrame
	}
	return data, nil
}

func (c *Conn) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return translate(err)
	}
	return nil
}

func (c *Conn) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
		return translate(err)
	}
	return nil
}

func (c *Conn) Close(reason string) error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// translate folds the ways a peer can hang up into domain.ErrConnClosed.
func translate(err error) error {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		if websocket.IsUnexpectedCloseError(err,
			websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure,
			websocket.CloseNoStatusReceived) {
			log.Error().Err(err).Msg("Unexpected close error")
		}
		return fmt.Errorf("%w: %v", domain.ErrConnClosed, err)
	case errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", domain.ErrConnClosed, err)
	default:
		return err
	}
}
