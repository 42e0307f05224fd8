package service

import (
	"sync"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/Wyydra/pairlink/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Room is a capacity two rendezvous point. members is guarded by the owning
// Registry's lock; the hub has its own.
type Room struct {
	ID      domain.RoomID
	members map[domain.PeerID]struct{}
	hub     *hub
}

func newRoom(id domain.RoomID, buffer int) *Room {
	return &Room{
		ID:      id,
		members: make(map[domain.PeerID]struct{}, domain.RoomCapacity),
		hub:     newHub(id, buffer),
	}
}

func (r *Room) has(peerID domain.PeerID) bool {
	_, ok := r.members[peerID]
	return ok
}

// hub fans every published frame out to all current subscriptions, in
// publish order. Publishing never blocks: a subscription whose buffer is
// full is dropped and its channel closed.
type hub struct {
	roomID domain.RoomID
	buffer int

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

func newHub(roomID domain.RoomID, buffer int) *hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &hub{
		roomID: roomID,
		buffer: buffer,
		subs:   make(map[uint64]*subscription),
	}
}

type subscription struct {
	id     uint64
	peerID domain.PeerID
	frames chan port.Frame
	hub    *hub
}

func (s *subscription) Frames() <-chan port.Frame {
	return s.frames
}

func (s *subscription) Close() {
	s.hub.remove(s.id)
}

func (h *hub) subscribe(peerID domain.PeerID) *subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &subscription{
		id:     h.nextID,
		peerID: peerID,
		frames: make(chan port.Frame, h.buffer),
		hub:    h,
	}
	if h.closed {
		close(s.frames)
		return s
	}
	h.subs[s.id] = s
	return s
}

func (h *hub) publish(f port.Frame) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, s := range h.subs {
		select {
		case s.frames <- f:
			delivered++
		default:
			log.Warn().
				Str("room_id", h.roomID.String()).
				Str("peer_id", s.peerID.String()).
				Msg("Subscriber lagging behind, dropping subscription")
			delete(h.subs, id)
			close(s.frames)
		}
	}
	return delivered
}

func (h *hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.frames)
	}
}

func (h *hub) removePeer(peerID domain.PeerID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.subs {
		if s.peerID == peerID {
			delete(h.subs, id)
			close(s.frames)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.frames)
	}
}
