package domain

import (
	"errors"

	"github.com/pion/webrtc/v3"
)

type SignalType string

const (
	SignalTypeOffer        SignalType = "offer"
	SignalTypeAnswer       SignalType = "answer"
	SignalTypeICECandidate SignalType = "ice-candidate"
)

var (
	ErrMalformedSignal = errors.New("malformed signal")
)

// SignalEnvelope is a tagged union keyed by Type: offers and answers carry a
// session description, ice-candidate carries a candidate. Delivery is
// at-most-once at best; receivers must tolerate duplicates and reordering.
type SignalEnvelope struct {
	Type        SignalType                 `json:"type"`
	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Source      string                     `json:"source"`
	Target      string                     `json:"target"`
}

func (e *SignalEnvelope) Validate() error {
	if e.Source == "" || e.Target == "" {
		return ErrMalformedSignal
	}

	switch e.Type {
	case SignalTypeOffer, SignalTypeAnswer:
		if e.Description == nil {
			return ErrMalformedSignal
		}
	case SignalTypeICECandidate:
		if e.Candidate == nil {
			return ErrMalformedSignal
		}
	default:
		return ErrMalformedSignal
	}

	return nil
}
