package service

import (
	"sort"
	"sync"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/Wyydra/pairlink/internal/core/port"
	"github.com/rs/zerolog/log"
)

// Registry maps room ids to rooms. Every structural change happens under mu;
// payload traffic goes through each room's hub without holding it.
type Registry struct {
	mu     sync.Mutex
	rooms  map[domain.RoomID]*Room
	buffer int
}

// NewRegistry returns an empty registry whose rooms buffer up to buffer
// frames per subscriber.
func NewRegistry(buffer int) *Registry {
	return &Registry{
		rooms:  make(map[domain.RoomID]*Room),
		buffer: buffer,
	}
}

// JoinOrCreate admits peerID into roomID if there is a free slot. The
// capacity check and the insert are one step under the lock.
func (r *Registry) JoinOrCreate(roomID domain.RoomID, peerID domain.PeerID) domain.Admission {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = newRoom(roomID, r.buffer)
		room.members[peerID] = struct{}{}
		r.rooms[roomID] = room
		log.Info().Str("room_id", roomID.String()).Str("peer_id", peerID.String()).Msg("Room created")
		return domain.AdmissionCreated
	}

	// a member already holds its slot; a second session for it is refused
	if room.has(peerID) || len(room.members) >= domain.RoomCapacity {
		log.Info().Str("room_id", roomID.String()).Str("peer_id", peerID.String()).Msg("Room full, admission refused")
		return domain.AdmissionFull
	}

	room.members[peerID] = struct{}{}
	log.Info().
		Int("count", len(room.members)).
		Str("room_id", roomID.String()).
		Str("peer_id", peerID.String()).
		Msg("Peer joined room")
	return domain.AdmissionJoined
}

// Subscribe attaches a new receiver to the room's fan-out. Only members may
// subscribe.
func (r *Registry) Subscribe(roomID domain.RoomID, peerID domain.PeerID) (port.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.has(peerID) {
		return nil, domain.ErrNotMember
	}
	return room.hub.subscribe(peerID), nil
}

// Leave removes peerID from the room and drops its subscriptions. An empty
// room is evicted. Leaving twice is harmless.
func (r *Registry) Leave(roomID domain.RoomID, peerID domain.PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok || !room.has(peerID) {
		return
	}

	delete(room.members, peerID)
	room.hub.removePeer(peerID)
	log.Info().
		Int("count", len(room.members)).
		Str("room_id", roomID.String()).
		Str("peer_id", peerID.String()).
		Msg("Peer left room")

	if len(room.members) == 0 {
		delete(r.rooms, roomID)
		room.hub.close()
		log.Info().Str("room_id", roomID.String()).Msg("Room evicted")
	}
}

// Publish hands an already encoded frame to every subscriber of the room and
// returns how many received it. A missing room is not an error.
func (r *Registry) Publish(roomID domain.RoomID, frame port.Frame) int {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	r.mu.Unlock()

	if !ok {
		log.Debug().Str("room_id", roomID.String()).Msg("Publish to missing room ignored")
		return 0
	}
	return room.hub.publish(frame)
}

// Broadcast encodes env and publishes it as a relay originated frame.
func (r *Registry) Broadcast(roomID domain.RoomID, env domain.Envelope) error {
	data, err := domain.Encode(env)
	if err != nil {
		return err
	}
	r.Publish(roomID, port.Frame{Data: data})
	return nil
}

// Members returns the number of peers currently in roomID.
func (r *Registry) Members(roomID domain.RoomID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		return len(room.members)
	}
	return 0
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Snapshot lists the live rooms ordered by id.
func (r *Registry) Snapshot() []domain.RoomInfo {
	r.mu.Lock()
	infos := make([]domain.RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		infos = append(infos, domain.RoomInfo{ID: id, Members: len(room.members)})
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
