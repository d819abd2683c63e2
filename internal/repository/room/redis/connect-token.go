package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchsync/server/internal/repository/room"
)

const connectSessionExpire = 10 * time.Minute

func (r repo) getConnectTokenKey(token string) string {
	return "connect-token:" + token
}

func (r repo) SetConnectSession(ctx context.Context, params *room.SetConnectSessionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	session, err := json.Marshal(room.ConnectSession{
		Username: params.Username,
		RoomId:   params.RoomId,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connect session: %w", err)
	}

	ok, err := r.rc.SetNX(ctx, r.getConnectTokenKey(params.Token), session, connectSessionExpire).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set connect session: %w", err)
	}

	if !ok {
		return room.ErrConnectTokenAlreadyExists
	}

	return nil
}

// GetConnectSession consumes the token: it is removed on first read.
func (r repo) GetConnectSession(ctx context.Context, token string) (room.ConnectSession, error) {
	if token == "" {
		return room.ConnectSession{}, room.ErrConnectTokenNotFound
	}

	raw, err := r.rc.GetDel(ctx, r.getConnectTokenKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return room.ConnectSession{}, room.ErrConnectTokenNotFound
		}

		return room.ConnectSession{}, fmt.Errorf("failed to get connect session: %w", err)
	}

	var session room.ConnectSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return room.ConnectSession{}, fmt.Errorf("failed to unmarshal connect session: %w", err)
	}

	return session, nil
}
