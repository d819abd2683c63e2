package redis

import (
	"context"
	"fmt"
)

func (r repo) getReadyKey(roomId string) string {
	return "room:" + roomId + ":ready"
}

// AddReady marks the member ready. Keyed by member id, so duplicate ready
// signals from the same member (including after a reconnect) count once.
func (r repo) AddReady(ctx context.Context, roomId, memberId string) error {
	r.logger.DebugContext(ctx, "called", "roomId", roomId, "memberId", memberId)
	readyKey := r.getReadyKey(roomId)
	if err := r.rc.SAdd(ctx, readyKey, memberId).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to add ready: %w", err)
	}

	r.rc.Expire(ctx, readyKey, r.expireDuration)

	return nil
}

func (r repo) GetReadyCount(ctx context.Context, roomId string) (int, error) {
	count, err := r.rc.SCard(ctx, r.getReadyKey(roomId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get ready count: %w", err)
	}

	return int(count), nil
}
