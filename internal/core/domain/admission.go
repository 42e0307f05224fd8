package domain

// Admission is the outcome of asking to enter a room.
type Admission int

const (
	AdmissionCreated Admission = iota + 1 // room did not exist, caller is the first member
	AdmissionJoined                       // caller took the second slot
	AdmissionFull                         // room already holds two members
)

// RoomCapacity is the number of peers a room admits.
const RoomCapacity = 2

func (a Admission) String() string {
	switch a {
	case AdmissionCreated:
		return "created"
	case AdmissionJoined:
		return "joined"
	case AdmissionFull:
		return "full"
	default:
		return "unknown"
	}
}

// Admitted reports whether the peer obtained a slot.
func (a Admission) Admitted() bool {
	return a == AdmissionCreated || a == AdmissionJoined
}

// Notice returns the alert broadcast (or, for Full, sent directly) after
// admission.
func (a Admission) Notice() Alert {
	return Alert{Detail: a.String()}
}

// SessionState is the lifecycle of one accepted connection.
type SessionState int32

const (
	StateAdmitting SessionState = iota
	StateActive
	StateDraining
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAdmitting:
		return "admitting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// RoomInfo is a read-only view of a room for listings.
type RoomInfo struct {
	ID      RoomID `json:"room_id"`
	Members int    `json:"members"`
}
