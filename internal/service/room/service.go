package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/relay"
	"github.com/couchsync/server/internal/repository/room"
	"github.com/couchsync/server/pkg/randstr"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrRoomFull       = errors.New("room is full")
	ErrInvalidToken   = errors.New("invalid connect token")
	// ErrRelayPublish marks a soft failure: the local state change already
	// committed and is not rolled back, only the fan-out failed.
	ErrRelayPublish = errors.New("relay publish failed")
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	SetRoomStarted(context.Context, string) error
	RemoveRoom(context.Context, string) error
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	GetMemberIds(context.Context, string) ([]string, error)
	IsMemberInRoom(ctx context.Context, roomId, memberId string) (bool, error)
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	// ready
	AddReady(ctx context.Context, roomId, memberId string) error
	GetReadyCount(ctx context.Context, roomId string) (int, error)
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(context.Context, string) (room.Player, error)
	UpdatePlayerState(context.Context, *room.UpdatePlayerStateParams) error
	// connect session
	SetConnectSession(context.Context, *room.SetConnectSessionParams) error
	GetConnectSession(context.Context, string) (room.ConnectSession, error)
}

type iConnRepo interface {
	Add(*websocket.Conn, string) error
	RemoveByMemberId(string) (*websocket.Conn, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	MembersLimit int
	Secret       string
	RoomCodeLen  int
}

type service struct {
	roomRepo     iRoomRepo
	connRepo     iConnRepo
	relay        relay.Relay
	generator    iGenerator
	logger       *slog.Logger
	secret       string
	membersLimit int
	roomCodeLen  int
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, rel relay.Relay, logger *slog.Logger, cfg *Config) *service {
	s := service{
		roomRepo:     roomRepo,
		connRepo:     connRepo,
		relay:        rel,
		logger:       logger,
		secret:       cfg.Secret,
		membersLimit: cfg.MembersLimit,
		roomCodeLen:  cfg.RoomCodeLen,
	}

	if s.roomCodeLen == 0 {
		s.roomCodeLen = 6
	}

	letterBytes := []byte("ABCDEFGHIJKLMNPQRSTUVWXYZ123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}
