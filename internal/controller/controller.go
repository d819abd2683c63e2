package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/relay"
	"github.com/couchsync/server/internal/service/room"
	"github.com/couchsync/server/pkg/validator"
	"github.com/couchsync/server/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	CreateJoinSession(context.Context, *room.CreateJoinSessionParams) (room.CreateJoinSessionResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	MarkReady(context.Context, *room.MarkReadyParams) (room.MarkReadyResponse, error)
	BroadcastPlayback(context.Context, *room.BroadcastPlaybackParams) (room.BroadcastPlaybackResponse, error)
	RelaySignal(context.Context, *room.RelaySignalParams) error
	GetRoomState(context.Context, string) (room.RoomState, error)
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.LeaveRoomResponse, error)
}

type controller struct {
	roomService iRoomService
	relay       relay.Relay
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	wsmux       *wsrouter.WSRouter
	// gorilla conns do not support concurrent writers; every write goes
	// through the per-conn mutex held here.
	connMu sync.Map
}

func NewController(roomService iRoomService, rel relay.Relay, logger *slog.Logger) *controller {
	c := controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		relay:       rel,
		validate:    validator.NewValidator(),
		logger:      logger,
	}

	c.wsmux = c.getWSRouter()

	return &c
}

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (c *controller) writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	muAny, _ := c.connMu.LoadOrStore(conn, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)

	mu.Lock()
	defer mu.Unlock()

	if err := conn.WriteJSON(v); err != nil {
		c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		return err
	}

	return nil
}

func (c *controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	return c.writeJSON(ctx, conn, output)
}

func (c *controller) forgetConn(conn *websocket.Conn) {
	c.connMu.Delete(conn)
}
