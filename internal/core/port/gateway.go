package port

import (
	"github.com/Wyydra/pairlink/internal/core/domain"
)

// Subscription receives every frame published to a room after it was taken.
type Subscription interface {
	Frames() <-chan Frame
	Close()
}

// Frame is an encoded envelope travelling through a room. Origin is empty
// for frames the relay itself produced.
type Frame struct {
	Origin domain.PeerID
	Data   []byte
}

// RoomRegistry is the shared room table a connection session works against.
type RoomRegistry interface {
	JoinOrCreate(roomID domain.RoomID, peerID domain.PeerID) domain.Admission
	Subscribe(roomID domain.RoomID, peerID domain.PeerID) (Subscription, error)
	Leave(roomID domain.RoomID, peerID domain.PeerID)
	Broadcast(roomID domain.RoomID, env domain.Envelope) error
	Publish(roomID domain.RoomID, frame Frame) int
}
