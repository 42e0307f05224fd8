package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Kind is the discriminator carried in the "type" field of every frame.
type Kind string

const (
	KindCandidate Kind = "candidate"
	KindOffer     Kind = "offer"
	KindAnswer    Kind = "answer"
	KindAlert     Kind = "alert"
	KindText      Kind = "text"
	KindReady     Kind = "ready"
	KindUnknown   Kind = "unknown"
)

// Alert details sent by the relay itself.
const (
	AlertCreated = "created"
	AlertJoined  = "joined"
	AlertFull    = "full"
	AlertLeft    = "left"
)

// Envelope is one signaling message. The concrete types below are the only
// implementations.
type Envelope interface {
	Kind() Kind
}

// Candidate mirrors the browser RTCIceCandidateInit dictionary.
type Candidate struct {
	Candidate        string `json:"candidate"`
	SDPMLineIndex    int32  `json:"sdpMLineIndex"`
	SDPMid           string `json:"sdpMid"`
	UsernameFragment string `json:"usernameFragment"`
	Creator          *bool  `json:"creator,omitempty"`
}

// Offer mirrors RTCSessionDescriptionInit for the offering side.
type Offer struct {
	SDPType string `json:"type"`
	SDP     string `json:"sdp"`
}

// Answer mirrors RTCSessionDescriptionInit for the answering side.
type Answer struct {
	SDPType string `json:"type"`
	SDP     string `json:"sdp"`
}

// Alert is a status notice originated by the relay.
type Alert struct {
	Detail string `json:"detail"`
}

// Text is free-form passthrough.
type Text struct {
	Body string `json:"body"`
}

// Ready tells the other peer that negotiation may begin.
type Ready struct{}

// Unknown is what Decode yields for anything it cannot classify. It is never
// forwarded.
type Unknown struct {
	Reason string
}

func (Candidate) Kind() Kind { return KindCandidate }
func (Offer) Kind() Kind     { return KindOffer }
func (Answer) Kind() Kind    { return KindAnswer }
func (Alert) Kind() Kind     { return KindAlert }
func (Text) Kind() Kind      { return KindText }
func (Ready) Kind() Kind     { return KindReady }
func (Unknown) Kind() Kind   { return KindUnknown }

// Relayable reports whether a frame received from a peer is forwarded to the
// room. Alerts are reserved for the relay.
func Relayable(e Envelope) bool {
	switch e.Kind() {
	case KindCandidate, KindOffer, KindAnswer, KindText, KindReady:
		return true
	default:
		return false
	}
}

// wireEnvelope is the outbound shape; Decode reads the same keys by hand.
type wireEnvelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serialises e into a text frame.
func Encode(e Envelope) ([]byte, error) {
	w := wireEnvelope{Type: e.Kind()}
	switch v := e.(type) {
	case Ready, *Ready:
	case Unknown, *Unknown:
		// the reason is diagnostic only and stays off the wire
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		w.Payload = payload
	}
	return json.Marshal(w)
}

// payloadFields lists the exact payload keys of each kind. Keys that differ
// only in case are rejected.
var payloadFields = map[Kind][]string{
	KindCandidate: {"candidate", "sdpMLineIndex", "sdpMid", "usernameFragment", "creator"},
	KindOffer:     {"type", "sdp"},
	KindAnswer:    {"type", "sdp"},
	KindAlert:     {"detail"},
	KindText:      {"body"},
}

var envelopeFields = []string{"type", "payload"}

// Decode classifies a text frame. It never fails: input that is not a
// well-formed envelope of a known kind comes back as Unknown.
func Decode(data []byte) Envelope {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Unknown{Reason: "empty frame"}
	}
	if !utf8.Valid(data) {
		return Unknown{Reason: "invalid utf-8"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Unknown{Reason: "malformed envelope"}
	}
	if key, ok := miscased(fields, envelopeFields); ok {
		return Unknown{Reason: "miscased field " + key}
	}

	raw, ok := fields["type"]
	if !ok {
		return Unknown{Reason: "missing type"}
	}
	var kind Kind
	if err := json.Unmarshal(raw, &kind); err != nil {
		return Unknown{Reason: "type is not a string"}
	}

	payload := fields["payload"]
	switch kind {
	case KindReady:
		return Ready{}
	case KindCandidate:
		return decodePayload[Candidate](kind, payload)
	case KindOffer:
		return decodePayload[Offer](kind, payload)
	case KindAnswer:
		return decodePayload[Answer](kind, payload)
	case KindAlert:
		return decodePayload[Alert](kind, payload)
	case KindText:
		return decodePayload[Text](kind, payload)
	case "":
		return Unknown{Reason: "missing type"}
	default:
		return Unknown{Reason: "unknown type " + string(kind)}
	}
}

func decodePayload[T Envelope](kind Kind, payload json.RawMessage) Envelope {
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return Unknown{Reason: string(kind) + " without payload"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Unknown{Reason: "bad " + string(kind) + " payload: " + err.Error()}
	}
	if key, ok := miscased(fields, payloadFields[kind]); ok {
		return Unknown{Reason: "miscased " + string(kind) + " field " + key}
	}

	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return Unknown{Reason: "bad " + string(kind) + " payload: " + err.Error()}
	}
	return v
}

// miscased returns a key in fields that matches one of names only
// when case is ignored. Unrelated extra keys are allowed.
func miscased(fields map[string]json.RawMessage, names []string) (string, bool) {
	for key := range fields {
		for _, name := range names {
			if key != name && strings.EqualFold(key, name) {
				return key, true
			}
		}
	}
	return "", false
}
