package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/service/room"
)

type EmptyInput struct{}

func (c *controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type SyncInput struct {
	Event domain.PlaybackEventKind `json:"event"`
	Time  float64                  `json:"time"`
}

func (c *controller) handleSync(ctx context.Context, conn *websocket.Conn, input SyncInput) error {
	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	resp, err := c.roomService.BroadcastPlayback(ctx, &room.BroadcastPlaybackParams{
		RoomId:   roomId,
		SenderId: memberId,
		Kind:     input.Event,
		Time:     input.Time,
	})
	if err != nil {
		return fmt.Errorf("failed to broadcast playback: %w", err)
	}

	return c.reportPublishError(ctx, conn, resp.PublishError)
}

func (c *controller) handleReady(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	resp, err := c.roomService.MarkReady(ctx, &room.MarkReadyParams{
		RoomId:   roomId,
		SenderId: memberId,
	})
	if err != nil {
		return fmt.Errorf("failed to mark ready: %w", err)
	}

	return c.reportPublishError(ctx, conn, resp.PublishError)
}

type WebRTCSignalInput struct {
	Type        domain.SignalType          `json:"type"`
	Description *webrtc.SessionDescription `json:"description,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Target      string                     `json:"target"`
}

func (c *controller) handleWebRTCSignal(ctx context.Context, _ *websocket.Conn, input WebRTCSignalInput) error {
	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	envelope := domain.SignalEnvelope{
		Type:        input.Type,
		Description: input.Description,
		Candidate:   input.Candidate,
		Source:      memberId, // the sender cannot spoof another source
		Target:      input.Target,
	}

	if err := c.roomService.RelaySignal(ctx, &room.RelaySignalParams{
		RoomId:   roomId,
		Envelope: envelope,
	}); err != nil {
		if errors.Is(err, domain.ErrMalformedSignal) {
			// dropped silently with a log entry, never crashes the handler
			c.logger.InfoContext(ctx, "dropped malformed signal", "type", input.Type)
			return nil
		}

		return fmt.Errorf("failed to relay signal: %w", err)
	}

	return nil
}

func (c *controller) handleGetState(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	roomId := c.getRoomIdFromCtx(ctx)

	state, err := c.roomService.GetRoomState(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to get room state: %w", err)
	}

	return c.writeToConn(ctx, conn, &Output{
		Type:    "ROOM_STATE",
		Payload: state,
	})
}

// reportPublishError surfaces a soft relay failure as a status message. The
// local state change already committed, so the handler still succeeds.
func (c *controller) reportPublishError(ctx context.Context, conn *websocket.Conn, publishErr error) error {
	if publishErr == nil {
		return nil
	}

	c.logger.WarnContext(ctx, "relay publish failed", "error", publishErr)
	return c.writeToConn(ctx, conn, &Output{
		Type:    "STATUS",
		Payload: map[string]any{"status": "degraded", "detail": "broadcast delivery failed"},
	})
}
