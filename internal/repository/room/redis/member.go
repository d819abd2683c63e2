package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/couchsync/server/internal/repository/room"
)

func (r repo) getMemberKey(memberId string) string {
	return "member:" + memberId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) addMemberToList(ctx context.Context, pipe redis.Pipeliner, roomId, memberId string) {
	memberListKey := r.getMemberListKey(roomId)

	r.addWithIncrement(ctx, pipe, memberListKey, memberId)
	pipe.Expire(ctx, memberListKey, r.expireDuration)
}

// SetMember registers the member and appends it to the room member list.
// The list insert is NX-guarded, so re-registering the same member id is a
// no-op on the list.
func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.MemberId)
	pipe.HSet(ctx, memberKey, room.Member{
		Username: params.Username,
		JoinedAt: params.JoinedAt,
	})
	pipe.Expire(ctx, memberKey, r.expireDuration)

	r.addMemberToList(ctx, pipe, params.RoomId, params.MemberId)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set member: %w", err)
	}

	return nil
}

func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	memberListKey := r.getMemberListKey(roomId)
	memberIds, err := r.rc.ZRange(ctx, memberListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	r.rc.Expire(ctx, memberListKey, r.expireDuration)

	return memberIds, nil
}

func (r repo) IsMemberInRoom(ctx context.Context, roomId, memberId string) (bool, error) {
	err := r.rc.ZScore(ctx, r.getMemberListKey(roomId), memberId).Err()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}

		return false, fmt.Errorf("failed to check member: %w", err)
	}

	return true, nil
}

// RemoveMember removes the member from the list, the ready set and deletes
// its hash. Removing an absent member returns ErrMemberNotFound without
// touching anything else, so duplicate disconnects are safe.
func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	removed, err := r.rc.ZRem(ctx, r.getMemberListKey(params.RoomId), params.MemberId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove member from list: %w", err)
	}

	if removed == 0 {
		return room.ErrMemberNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.SRem(ctx, r.getReadyKey(params.RoomId), params.MemberId)
	pipe.Del(ctx, r.getMemberKey(params.MemberId))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}
