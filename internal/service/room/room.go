package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/repository/room"
)

type CreateRoomParams struct {
	Username string
	VideoURL string
}

type CreateRoomResponse struct {
	RoomId       string
	ConnectToken string
}

// CreateRoom allocates a room code, seeds the paused-at-zero playback
// snapshot and mints a single-use connect token for the creator.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := s.generator.GenerateRandomString(s.roomCodeLen)
	now := time.Now().Unix()

	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		RoomId:    roomId,
		VideoURL:  params.VideoURL,
		CreatedAt: now,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
		IsPlaying:   false,
		CurrentTime: 0,
		UpdatedAt:   now,
		RoomId:      roomId,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set player: %w", err)
	}

	connectToken, err := s.createConnectSession(ctx, params.Username, roomId)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	return CreateRoomResponse{
		RoomId:       roomId,
		ConnectToken: connectToken,
	}, nil
}

type CreateJoinSessionParams struct {
	Username string
	RoomId   string
}

type CreateJoinSessionResponse struct {
	ConnectToken string
}

func (s service) CreateJoinSession(ctx context.Context, params *CreateJoinSessionParams) (CreateJoinSessionResponse, error) {
	if _, err := s.roomRepo.GetRoom(ctx, params.RoomId); err != nil {
		if err == room.ErrRoomNotFound {
			return CreateJoinSessionResponse{}, ErrRoomNotFound
		}

		return CreateJoinSessionResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	participants, err := s.getParticipants(ctx, params.RoomId)
	if err != nil {
		return CreateJoinSessionResponse{}, err
	}

	if len(participants) >= s.membersLimit {
		return CreateJoinSessionResponse{}, ErrRoomFull
	}

	connectToken, err := s.createConnectSession(ctx, params.Username, params.RoomId)
	if err != nil {
		return CreateJoinSessionResponse{}, err
	}

	return CreateJoinSessionResponse{ConnectToken: connectToken}, nil
}

func (s service) createConnectSession(ctx context.Context, username, roomId string) (string, error) {
	sessionId := uuid.NewString()
	if err := s.roomRepo.SetConnectSession(ctx, &room.SetConnectSessionParams{
		Token:    sessionId,
		Username: username,
		RoomId:   roomId,
	}); err != nil {
		return "", fmt.Errorf("failed to set connect session: %w", err)
	}

	connectToken, err := s.generateConnectToken(sessionId)
	if err != nil {
		return "", fmt.Errorf("failed to generate connect token: %w", err)
	}

	return connectToken, nil
}

type JoinRoomParams struct {
	ConnectToken string
	RoomId       string
}

type JoinRoomResponse struct {
	MemberId     string
	Username     string
	State        RoomState
	PublishError error
}

// JoinRoom consumes the connect token and registers a fresh participant.
// Every join produces a new participant id: a rejoin is a new participant.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	sessionId, err := s.parseConnectToken(params.ConnectToken)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to parse connect token", "error", err)
		return JoinRoomResponse{}, ErrInvalidToken
	}

	session, err := s.roomRepo.GetConnectSession(ctx, sessionId)
	if err != nil {
		if err == room.ErrConnectTokenNotFound {
			return JoinRoomResponse{}, ErrInvalidToken
		}

		return JoinRoomResponse{}, fmt.Errorf("failed to get connect session: %w", err)
	}

	if session.RoomId != params.RoomId {
		return JoinRoomResponse{}, ErrInvalidToken
	}

	memberId := uuid.NewString()
	registerResp, err := s.RegisterMember(ctx, &RegisterMemberParams{
		RoomId:   params.RoomId,
		MemberId: memberId,
		Username: session.Username,
	})
	if err != nil {
		return JoinRoomResponse{}, err
	}

	state, err := s.GetRoomState(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{
		MemberId:     memberId,
		Username:     session.Username,
		State:        state,
		PublishError: registerResp.PublishError,
	}, nil
}

type RegisterMemberParams struct {
	RoomId   string
	MemberId string
	Username string
}

type RegisterMemberResponse struct {
	Participants []string
	ReadyCount   int
	PublishError error
}

// RegisterMember is idempotent: registering an already-registered member id
// returns current state without duplicating it. The published membership
// update carries the full participant list so clients that missed earlier
// events reconverge.
func (s service) RegisterMember(ctx context.Context, params *RegisterMemberParams) (RegisterMemberResponse, error) {
	if _, err := s.roomRepo.GetRoom(ctx, params.RoomId); err != nil {
		if err == room.ErrRoomNotFound {
			return RegisterMemberResponse{}, ErrRoomNotFound
		}

		return RegisterMemberResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId: params.MemberId,
		Username: params.Username,
		JoinedAt: time.Now().Unix(),
		RoomId:   params.RoomId,
	}); err != nil {
		return RegisterMemberResponse{}, fmt.Errorf("failed to set member: %w", err)
	}

	participants, err := s.getParticipants(ctx, params.RoomId)
	if err != nil {
		return RegisterMemberResponse{}, err
	}

	readyCount, err := s.roomRepo.GetReadyCount(ctx, params.RoomId)
	if err != nil {
		return RegisterMemberResponse{}, fmt.Errorf("failed to get ready count: %w", err)
	}

	resp := RegisterMemberResponse{
		Participants: participants,
		ReadyCount:   readyCount,
	}

	if err := s.relay.Publish(ctx, domain.UsersJoinedChannel(params.RoomId), "user-joined", domain.MembershipUpdate{
		Source:       params.MemberId,
		CurrentUsers: participants,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user-joined", "error", err)
		resp.PublishError = fmt.Errorf("%w: %v", ErrRelayPublish, err)
	}

	return resp, nil
}

type LeaveRoomParams struct {
	RoomId   string
	MemberId string
}

type LeaveRoomResponse struct {
	Participants  []string
	ReadyCount    int
	Started       bool
	IsRoomDeleted bool
	PublishError  error
}

// LeaveRoom removes the participant and publishes the updated full list.
// Safe to call multiple times for the same participant: a second call finds
// nothing to remove and returns current state. Leaving while the gate is
// waiting re-evaluates it, which can open the gate if the remaining ready
// count now covers the remaining participants.
func (s service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
	}); err != nil && err != room.ErrMemberNotFound {
		return LeaveRoomResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	participants, err := s.getParticipants(ctx, params.RoomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	if len(participants) == 0 {
		if err := s.roomRepo.RemoveRoom(ctx, params.RoomId); err != nil {
			return LeaveRoomResponse{}, fmt.Errorf("failed to remove room: %w", err)
		}

		return LeaveRoomResponse{IsRoomDeleted: true}, nil
	}

	readyCount, started, err := s.evaluateGate(ctx, params.RoomId)
	if err != nil {
		return LeaveRoomResponse{}, err
	}

	resp := LeaveRoomResponse{
		Participants: participants,
		ReadyCount:   readyCount,
		Started:      started,
	}

	if err := s.relay.Publish(ctx, domain.UsersLeftChannel(params.RoomId), "user-left", domain.MembershipUpdate{
		Source:       params.MemberId,
		CurrentUsers: participants,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user-left", "error", err)
		resp.PublishError = fmt.Errorf("%w: %v", ErrRelayPublish, err)
	}

	if started {
		if err := s.publishReady(ctx, params.RoomId, params.MemberId, readyCount, started); err != nil {
			resp.PublishError = err
		}
	}

	return resp, nil
}

func (s service) GetRoomState(ctx context.Context, roomId string) (RoomState, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		if err == room.ErrRoomNotFound {
			return RoomState{}, ErrRoomNotFound
		}

		return RoomState{}, fmt.Errorf("failed to get room: %w", err)
	}

	participants, err := s.getParticipants(ctx, roomId)
	if err != nil {
		return RoomState{}, err
	}

	readyCount, err := s.roomRepo.GetReadyCount(ctx, roomId)
	if err != nil {
		return RoomState{}, fmt.Errorf("failed to get ready count: %w", err)
	}

	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		if err != room.ErrPlayerNotFound {
			return RoomState{}, fmt.Errorf("failed to get player: %w", err)
		}

		player = room.Player{}
	}

	return RoomState{
		RoomId:       roomId,
		VideoURL:     rm.VideoURL,
		Participants: participants,
		ReadyCount:   readyCount,
		Started:      rm.Started,
		Player: Player{
			IsPlaying:   player.IsPlaying,
			CurrentTime: player.CurrentTime,
			UpdatedAt:   player.UpdatedAt,
		},
	}, nil
}

type ConnectMemberParams struct {
	Conn     *websocket.Conn
	MemberId string
}

func (s service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	if err := s.connRepo.Add(params.Conn, params.MemberId); err != nil {
		s.logger.InfoContext(ctx, "failed to connect member", "error", err)
		return err
	}

	return nil
}

type DisconnectMemberParams struct {
	MemberId string
	RoomId   string
}

// DisconnectMember is the fire-and-forget cleanup path: the conn mapping is
// dropped and the member leaves the room. Partial failure is logged, not
// propagated.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (LeaveRoomResponse, error) {
	if _, err := s.connRepo.RemoveByMemberId(params.MemberId); err != nil {
		s.logger.DebugContext(ctx, "failed to remove conn", "error", err)
	}

	return s.LeaveRoom(ctx, &LeaveRoomParams{
		RoomId:   params.RoomId,
		MemberId: params.MemberId,
	})
}
