package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/ctxlogger"
)

func (c *controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	connectToken := r.URL.Query().Get("connect-token")

	joinRoomResp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		ConnectToken: connectToken,
		RoomId:       roomId,
	})
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to join room", "error", err)
		http.Error(w, "failed to join room", http.StatusUnauthorized)
		return
	}

	memberId := joinRoomResp.MemberId

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	// cleanup must run even when the request context is already canceled
	cleanupCtx := context.WithoutCancel(r.Context())
	defer c.disconnect(cleanupCtx, memberId, roomId, conn)

	if err := c.roomService.ConnectMember(r.Context(), &room.ConnectMemberParams{
		Conn:     conn,
		MemberId: memberId,
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to connect member", "error", err)
		return
	}

	unsubscribe, err := c.subscribeRoomChannels(r.Context(), conn, roomId, memberId)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to subscribe room channels", "error", err)
		return
	}
	defer unsubscribe()

	if err := c.writeToConn(r.Context(), conn, &Output{
		Type: "JOINED_ROOM",
		Payload: map[string]any{
			"member_id":  memberId,
			"room_state": joinRoomResp.State,
		},
	}); err != nil {
		return
	}

	if joinRoomResp.PublishError != nil {
		c.reportPublishError(r.Context(), conn, joinRoomResp.PublishError)
	}

	ctx := context.WithValue(r.Context(), roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, memberId)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", memberId))

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "conn closed", "error", err)
	}
}
