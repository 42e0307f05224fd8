package signalclient

import (
	"fmt"

	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/pion/webrtc/v4"
)

// FromSessionDescription wraps a pion description in the matching envelope.
func FromSessionDescription(sd webrtc.SessionDescription) (domain.Envelope, error) {
	switch sd.Type {
	case webrtc.SDPTypeOffer:
		return domain.Offer{SDPType: sd.Type.String(), SDP: sd.SDP}, nil
	case webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer:
		return domain.Answer{SDPType: sd.Type.String(), SDP: sd.SDP}, nil
	default:
		return nil, fmt.Errorf("cannot relay session description of type %q", sd.Type)
	}
}

// ToSessionDescription extracts a pion description from an offer or answer.
func ToSessionDescription(env domain.Envelope) (webrtc.SessionDescription, error) {
	var sdpType, sdp string
	switch v := env.(type) {
	case domain.Offer:
		sdpType, sdp = v.SDPType, v.SDP
	case domain.Answer:
		sdpType, sdp = v.SDPType, v.SDP
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("envelope %q carries no session description", env.Kind())
	}

	t := webrtc.NewSDPType(sdpType)
	if t == webrtc.SDPTypeUnknown {
		return webrtc.SessionDescription{}, fmt.Errorf("unknown sdp type %q", sdpType)
	}
	return webrtc.SessionDescription{Type: t, SDP: sdp}, nil
}

// FromICECandidateInit converts a pion candidate. Missing optional fields
// become zero values, matching what browsers send.
func FromICECandidateInit(init webrtc.ICECandidateInit) domain.Candidate {
	c := domain.Candidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		c.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		c.SDPMLineIndex = int32(*init.SDPMLineIndex)
	}
	if init.UsernameFragment != nil {
		c.UsernameFragment = *init.UsernameFragment
	}
	return c
}

// ToICECandidateInit converts a relayed candidate for AddICECandidate.
func ToICECandidateInit(c domain.Candidate) webrtc.ICECandidateInit {
	init := webrtc.ICECandidateInit{Candidate: c.Candidate}
	if c.SDPMid != "" {
		mid := c.SDPMid
		init.SDPMid = &mid
	}
	if c.SDPMLineIndex >= 0 && c.SDPMLineIndex <= 0xFFFF {
		idx := uint16(c.SDPMLineIndex)
		init.SDPMLineIndex = &idx
	}
	if c.UsernameFragment != "" {
		ufrag := c.UsernameFragment
		init.UsernameFragment = &ufrag
	}
	return init
}
