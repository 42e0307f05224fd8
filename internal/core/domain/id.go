package domain

import (
	"github.com/google/uuid"
)

// RoomID is the caller supplied room name. It is case-sensitive and never
// normalised.
type RoomID string

// PeerID identifies a connection inside a room. It is the remote socket
// address, so a reconnecting peer gets a new one.
type PeerID string

// SessionID correlates the log lines of a single connection session.
type SessionID uuid.UUID

func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (id RoomID) String() string {
	return string(id)
}

func (id PeerID) String() string {
	return string(id)
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}
