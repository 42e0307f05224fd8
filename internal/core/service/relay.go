package service

import (
	"context"
	"sync"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/Wyydra/pairlink/internal/core/port"
	"github.com/rs/zerolog/log"
)

// RelayService owns the room registry and runs one Session per accepted
// connection.
type RelayService struct {
	registry *Registry
	cfg      SessionConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewRelayService(registry *Registry, cfg SessionConfig) *RelayService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RelayService{
		registry: registry,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Serve runs a session for conn in roomID and blocks until it is closed.
func (s *RelayService) Serve(roomID domain.RoomID, conn port.Conn) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close("server shutting down")
		return domain.ErrRelayStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	session := NewSession(roomID, conn, s.registry, s.cfg)
	return session.Run(s.ctx)
}

// Rooms lists the live rooms.
func (s *RelayService) Rooms() []domain.RoomInfo {
	return s.registry.Snapshot()
}

// Stop cancels every running session and waits for them to drain or for
// ctx to expire.
func (s *RelayService) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	log.Info().Msg("Stopping relay. Disconnecting all peers.")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
