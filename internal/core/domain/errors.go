package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull           = errors.New("room is full")
	ErrRoomNotFound       = errors.New("room not found")
	ErrNotMember          = errors.New("peer is not a member of the room")
	ErrBinaryFrame        = errors.New("binary frames are not part of the protocol")
	ErrSubscriptionClosed = errors.New("room subscription closed")
	ErrConnClosed         = errors.New("connection closed")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrRelayStopped       = errors.New("relay is shutting down")
)

// SessionError records which step of a connection session failed.
type SessionError struct {
	Op     string
	RoomID RoomID
	PeerID PeerID
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s room=%q peer=%s: %v", e.Op, e.RoomID, e.PeerID, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
