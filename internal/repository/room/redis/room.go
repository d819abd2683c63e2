package redis

import (
	"context"
	"fmt"

	"github.com/couchsync/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomId)
	pipe.HSet(ctx, roomKey, room.Room{
		VideoURL:  params.VideoURL,
		CreatedAt: params.CreatedAt,
		Started:   false,
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	roomKey := r.getRoomKey(roomId)
	res, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to check if room exists: %w", err)
	}

	if res == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	var rm room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&rm); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return rm, nil
}

// SetRoomStarted marks the room started. The flag is monotonic: there is no
// operation that clears it while the room exists.
func (r repo) SetRoomStarted(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "roomId", roomId)
	roomKey := r.getRoomKey(roomId)
	res, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return err
	}

	if res == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey, "started", true).Err(); err != nil {
		return fmt.Errorf("failed to set room started: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "roomId", roomId)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getRoomKey(roomId))
	pipe.Del(ctx, r.getMemberListKey(roomId))
	pipe.Del(ctx, r.getReadyKey(roomId))
	pipe.Del(ctx, r.getPlayerKey(roomId))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}
