package room

import (
	"context"
	"fmt"
	"time"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/repository/room"
)

type BroadcastPlaybackParams struct {
	RoomId   string
	SenderId string
	Kind     domain.PlaybackEventKind
	Time     float64
}

type BroadcastPlaybackResponse struct {
	Player       Player
	PublishError error
}

// BroadcastPlayback persists the playback snapshot and fans the event out.
// There is no server authority over the "true" position: any participant's
// events steer the group and receivers reconcile locally. The snapshot only
// seeds late joiners.
func (s service) BroadcastPlayback(ctx context.Context, params *BroadcastPlaybackParams) (BroadcastPlaybackResponse, error) {
	event := domain.PlaybackEvent{
		Kind:   params.Kind,
		Time:   params.Time,
		Source: params.SenderId,
	}
	if err := event.Validate(); err != nil {
		return BroadcastPlaybackResponse{}, err
	}

	if err := s.checkMembership(ctx, params.RoomId, params.SenderId); err != nil {
		return BroadcastPlaybackResponse{}, err
	}

	player := Player{
		IsPlaying:   params.Kind == domain.PlaybackPlay,
		CurrentTime: params.Time,
		UpdatedAt:   time.Now().Unix(),
	}
	if params.Kind == domain.PlaybackSeek {
		// a seek does not change the play/pause state
		current, err := s.roomRepo.GetPlayer(ctx, params.RoomId)
		if err != nil && err != room.ErrPlayerNotFound {
			return BroadcastPlaybackResponse{}, fmt.Errorf("failed to get player: %w", err)
		}
		player.IsPlaying = current.IsPlaying
	}

	if err := s.roomRepo.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
		IsPlaying:   player.IsPlaying,
		CurrentTime: player.CurrentTime,
		UpdatedAt:   player.UpdatedAt,
		RoomId:      params.RoomId,
	}); err != nil {
		return BroadcastPlaybackResponse{}, fmt.Errorf("failed to update player state: %w", err)
	}

	resp := BroadcastPlaybackResponse{Player: player}

	if err := s.relay.Publish(ctx, domain.SyncChannel(params.RoomId), "sync", event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish sync event", "error", err)
		resp.PublishError = fmt.Errorf("%w: %v", ErrRelayPublish, err)
	}

	return resp, nil
}
