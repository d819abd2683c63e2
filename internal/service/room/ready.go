package room

import (
	"context"
	"fmt"

	"github.com/couchsync/server/internal/domain"
)

type MarkReadyParams struct {
	RoomId   string
	SenderId string
}

type MarkReadyResponse struct {
	ReadyCount   int
	Started      bool
	PublishError error
}

// MarkReady records the sender as ready and re-evaluates the start gate.
// Ready marks are deduplicated by participant id, so a reconnecting client
// re-sending ready cannot double count.
func (s service) MarkReady(ctx context.Context, params *MarkReadyParams) (MarkReadyResponse, error) {
	if err := s.checkMembership(ctx, params.RoomId, params.SenderId); err != nil {
		return MarkReadyResponse{}, err
	}

	if err := s.roomRepo.AddReady(ctx, params.RoomId, params.SenderId); err != nil {
		return MarkReadyResponse{}, fmt.Errorf("failed to add ready: %w", err)
	}

	readyCount, started, err := s.evaluateGate(ctx, params.RoomId)
	if err != nil {
		return MarkReadyResponse{}, err
	}

	resp := MarkReadyResponse{
		ReadyCount: readyCount,
		Started:    started,
	}

	if err := s.publishReady(ctx, params.RoomId, params.SenderId, readyCount, started); err != nil {
		resp.PublishError = err
	}

	return resp, nil
}

func (s service) publishReady(ctx context.Context, roomId, source string, readyCount int, started bool) error {
	if err := s.relay.Publish(ctx, domain.UsersStartedChannel(roomId), "user-started", domain.ReadyUpdate{
		Source:       source,
		StartedCount: readyCount,
		Started:      started,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user-started", "error", err)
		return fmt.Errorf("%w: %v", ErrRelayPublish, err)
	}

	return nil
}
