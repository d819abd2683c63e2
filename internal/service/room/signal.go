package room

import (
	"context"
	"fmt"

	"github.com/couchsync/server/internal/domain"
)

type RelaySignalParams struct {
	RoomId   string
	Envelope domain.SignalEnvelope
}

// RelaySignal forwards a WebRTC signaling envelope to the room's webrtc
// channel without interpreting it. Malformed envelopes are rejected before
// any publish; stale or duplicate envelopes are the receivers' problem.
func (s service) RelaySignal(ctx context.Context, params *RelaySignalParams) error {
	if err := params.Envelope.Validate(); err != nil {
		return err
	}

	if err := s.checkMembership(ctx, params.RoomId, params.Envelope.Source); err != nil {
		return err
	}

	if err := s.relay.Publish(ctx, domain.WebRTCChannel(params.RoomId), "webrtc-signal", params.Envelope); err != nil {
		s.logger.WarnContext(ctx, "failed to publish webrtc signal", "error", err)
		return fmt.Errorf("%w: %v", ErrRelayPublish, err)
	}

	return nil
}
