// Package signalclient is a Go peer for the relay: it joins a room over a
// websocket and exchanges envelopes with whoever else is in it.
package signalclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signal client closed")

// Client manages one websocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan domain.Envelope
	outgoing chan []byte
	done     chan struct{}
	written  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// RoomURL builds the websocket URL for roomID under base, which may use
// http(s) or ws(s).
func RoomURL(base string, roomID domain.RoomID) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + roomID.String()
	u.RawPath = ""
	return u.String(), nil
}

// Dial connects to a full room URL such as ws://host/ws/room1.
func Dial(ctx context.Context, rawURL string, header http.Header) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	c := &Client{
		conn:     conn,
		incoming: make(chan domain.Envelope, 32),
		outgoing: make(chan []byte, 32),
		done:     make(chan struct{}),
		written:  make(chan struct{}),
	}
	c.wg.Add(2)
	go c.readPump()
	go c.writePump()
	return c, nil
}

// readPump decodes frames until the connection fails, then closes incoming.
func (c *Client) readPump() {
	defer func() {
		close(c.incoming)
		c.wg.Done()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("Signal client read ended")
			}
			return
		}
		env := domain.Decode(data)
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		close(c.written)
		c.wg.Done()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Msg("Signal client write failed")
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// Incoming yields every envelope received from the room. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan domain.Envelope {
	return c.incoming
}

// Send encodes env and queues it for the relay.
func (c *Client) Send(ctx context.Context, env domain.Envelope) error {
	frame, err := domain.Encode(env)
	if err != nil {
		return err
	}
	return c.SendRaw(ctx, frame)
}

// SendRaw queues an already encoded frame.
func (c *Client) SendRaw(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendDescription relays a local offer or answer.
func (c *Client) SendDescription(ctx context.Context, sd webrtc.SessionDescription) error {
	env, err := FromSessionDescription(sd)
	if err != nil {
		return err
	}
	return c.Send(ctx, env)
}

// SendCandidate relays a local ICE candidate.
func (c *Client) SendCandidate(ctx context.Context, init webrtc.ICECandidateInit) error {
	return c.Send(ctx, FromICECandidateInit(init))
}

// Close ends the connection and waits for both pumps.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.written
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}
