package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/Wyydra/pairlink/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SessionConfig tunes a connection session.
type SessionConfig struct {
	// PingInterval is how often the outbound pump pings the peer. Zero
	// disables keepalive.
	PingInterval time.Duration
	// NotifyPeerLeft broadcasts an Alert{left} to the remaining member when
	// this session drains.
	NotifyPeerLeft bool
	// EchoToSender delivers a peer's own frames back to it.
	EchoToSender bool
}

// Session drives one accepted connection through
// admitting -> active -> draining -> closed.
type Session struct {
	id       domain.SessionID
	roomID   domain.RoomID
	peerID   domain.PeerID
	conn     port.Conn
	registry port.RoomRegistry
	cfg      SessionConfig
	state    atomic.Int32
	l        zerolog.Logger
}

func NewSession(roomID domain.RoomID, conn port.Conn, registry port.RoomRegistry, cfg SessionConfig) *Session {
	id := domain.NewSessionID()
	peerID := domain.PeerID(conn.RemoteAddr())

	s := &Session{
		id:       id,
		roomID:   roomID,
		peerID:   peerID,
		conn:     conn,
		registry: registry,
		cfg:      cfg,
		l: log.With().
			Str("session_id", id.String()).
			Str("room_id", roomID.String()).
			Str("peer_id", peerID.String()).
			Logger(),
	}
	s.state.Store(int32(domain.StateAdmitting))
	return s
}

func (s *Session) ID() domain.SessionID {
	return s.id
}

func (s *Session) PeerID() domain.PeerID {
	return s.peerID
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Session) setState(st domain.SessionState) {
	s.state.Store(int32(st))
	s.l.Debug().Str("state", st.String()).Msg("Session state changed")
}

// Run blocks until the connection is finished. A peer hanging up or ctx
// being cancelled ends the session with a nil error.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(domain.StateClosed)

	admission := s.registry.JoinOrCreate(s.roomID, s.peerID)
	if !admission.Admitted() {
		return s.reject(ctx, admission)
	}

	sub, err := s.registry.Subscribe(s.roomID, s.peerID)
	if err != nil {
		s.registry.Leave(s.roomID, s.peerID)
		_ = s.conn.Close("internal error")
		return s.fail("subscribe", err)
	}

	// subscribed first so the peer sees its own admission notice
	if err := s.registry.Broadcast(s.roomID, admission.Notice()); err != nil {
		s.l.Error().Err(err).Msg("Failed to broadcast admission notice")
	}
	s.setState(domain.StateActive)
	s.l.Info().Str("admission", admission.String()).Msg("Peer active")

	err = s.pump(ctx, sub)

	s.setState(domain.StateDraining)
	sub.Close()
	s.registry.Leave(s.roomID, s.peerID)
	if s.cfg.NotifyPeerLeft {
		if berr := s.registry.Broadcast(s.roomID, domain.Alert{Detail: domain.AlertLeft}); berr != nil {
			s.l.Error().Err(berr).Msg("Failed to broadcast leave notice")
		}
	}
	_ = s.conn.Close("")

	switch {
	case err == nil,
		errors.Is(err, domain.ErrConnClosed),
		errors.Is(err, context.Canceled):
		s.l.Info().Msg("Peer disconnected")
		return nil
	default:
		s.l.Warn().Err(err).Msg("Session ended with error")
		return s.fail("relay", err)
	}
}

func (s *Session) reject(ctx context.Context, admission domain.Admission) error {
	frame, err := domain.Encode(admission.Notice())
	if err == nil {
		err = s.conn.Write(ctx, frame)
	}
	if err != nil {
		s.l.Warn().Err(err).Msg("Failed to notify rejected peer")
	}
	_ = s.conn.Close("room full")
	return s.fail("admit", domain.ErrRoomFull)
}

func (s *Session) fail(op string, err error) error {
	return &domain.SessionError{Op: op, RoomID: s.roomID, PeerID: s.peerID, Err: err}
}

// pump runs both directions until the first one stops, then cancels the
// other and waits for it.
func (s *Session) pump(ctx context.Context, sub port.Subscription) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.outbound(gctx, sub) })
	g.Go(func() error { return s.inbound(gctx) })
	return g.Wait()
}

// outbound writes room frames to the peer. It always returns a non-nil
// error so its sibling gets cancelled.
func (s *Session) outbound(ctx context.Context, sub port.Subscription) error {
	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-sub.Frames():
			if !ok {
				return domain.ErrSubscriptionClosed
			}
			if f.Origin == s.peerID && !s.cfg.EchoToSender {
				continue
			}
			if err := s.conn.Write(ctx, f.Data); err != nil {
				return err
			}

		case <-ping:
			if err := s.conn.Ping(ctx); err != nil {
				return err
			}
		}
	}
}

// inbound reads frames from the peer and republishes the ones worth
// relaying, byte for byte.
func (s *Session) inbound(ctx context.Context) error {
	for {
		data, err := s.conn.Read(ctx)
		if errors.Is(err, domain.ErrBinaryFrame) {
			s.l.Warn().Msg("Dropping binary frame")
			continue
		}
		if err != nil {
			return err
		}

		env := domain.Decode(data)
		if !domain.Relayable(env) {
			ev := s.l.Warn().Str("kind", string(env.Kind()))
			if u, ok := env.(domain.Unknown); ok {
				ev = ev.Str("reason", u.Reason)
			}
			ev.Msg("Dropping frame")
			continue
		}

		n := s.registry.Publish(s.roomID, port.Frame{Origin: s.peerID, Data: data})
		s.l.Debug().Str("kind", string(env.Kind())).Int("subscribers", n).Msg("Relayed frame")
	}
}
