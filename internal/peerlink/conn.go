package peerlink

import (
	"context"

	"github.com/pion/webrtc/v3"

	"github.com/couchsync/server/internal/domain"
)

// PeerConnection is the negotiation surface the orchestrator drives. It is
// satisfied by *webrtc.PeerConnection.
type PeerConnection interface {
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	Close() error
}

// ConnFactory leases a fresh connection resource for one link.
type ConnFactory func() (PeerConnection, error)

// NewPionConnFactory builds links on pion peer connections with the given
// configuration.
func NewPionConnFactory(cfg webrtc.Configuration) ConnFactory {
	return func() (PeerConnection, error) {
		return webrtc.NewPeerConnection(cfg)
	}
}

// SignalSender carries envelopes to the remote side, typically by publishing
// to the room's webrtc relay channel.
type SignalSender interface {
	SendSignal(ctx context.Context, envelope domain.SignalEnvelope) error
}

// SignalSenderFunc adapts a function to SignalSender.
type SignalSenderFunc func(ctx context.Context, envelope domain.SignalEnvelope) error

func (f SignalSenderFunc) SendSignal(ctx context.Context, envelope domain.SignalEnvelope) error {
	return f(ctx, envelope)
}
