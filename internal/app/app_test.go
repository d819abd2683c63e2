package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pion/webrtc/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/peerlink"
	"github.com/couchsync/server/internal/relay/inmemory"
	connInmemory "github.com/couchsync/server/internal/repository/connection/inmemory"
	roomRedis "github.com/couchsync/server/internal/repository/room/redis"
	"github.com/couchsync/server/internal/service/room"
)

// The fakes below stand in for the browser-side resources a real client
// would hold: the peer connection, the video element and the capture device.

type fakeConn struct {
	sdpSeq int
	closed bool
}

func (f *fakeConn) CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	f.sdpSeq++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("o-%d", f.sdpSeq)}, nil
}

func (f *fakeConn) CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	f.sdpSeq++
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("a-%d", f.sdpSeq)}, nil
}

func (f *fakeConn) SetLocalDescription(desc webrtc.SessionDescription) error  { return nil }
func (f *fakeConn) SetRemoteDescription(desc webrtc.SessionDescription) error { return nil }
func (f *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error   { return nil }
func (f *fakeConn) Close() error                                              { f.closed = true; return nil }

type fakePlayer struct {
	playing  bool
	position float64
	plays    int
}

func (p *fakePlayer) Play()                   { p.playing = true; p.plays++ }
func (p *fakePlayer) Pause()                  { p.playing = false }
func (p *fakePlayer) SeekTo(position float64) { p.position = position }
func (p *fakePlayer) Position() float64       { return p.position }
func (p *fakePlayer) IsPlaying() bool         { return p.playing }

type fakeDevice struct{}

func (fakeDevice) Acquire(ctx context.Context) (func(), error) {
	return func() {}, nil
}

// delivery queues relay events per participant and pumps them only between
// calls, the way a browser event loop interleaves websocket messages with
// local actions.
type delivery struct {
	sess    *peerlink.Session
	event   string
	payload json.RawMessage
}

type eventLoop struct {
	queue []delivery
}

func (l *eventLoop) drain(ctx context.Context) {
	for len(l.queue) > 0 {
		d := l.queue[0]
		l.queue = l.queue[1:]
		d.sess.HandleEvent(ctx, d.event, d.payload)
	}
}

type participant struct {
	id      string
	session *peerlink.Session
	player  *fakePlayer
}

type harness struct {
	t      *testing.T
	svc    roomService
	rel    *inmemory.Relay
	loop   *eventLoop
	roomId string
}

// roomService is the slice of the service the harness drives.
type roomService interface {
	CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.CreateRoomResponse, error)
	CreateJoinSession(ctx context.Context, params *room.CreateJoinSessionParams) (room.CreateJoinSessionResponse, error)
	JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(ctx context.Context, params *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	MarkReady(ctx context.Context, params *room.MarkReadyParams) (room.MarkReadyResponse, error)
	BroadcastPlayback(ctx context.Context, params *room.BroadcastPlaybackParams) (room.BroadcastPlaybackResponse, error)
	RelaySignal(ctx context.Context, params *room.RelaySignalParams) error
	GetRoomState(ctx context.Context, roomId string) (room.RoomState, error)
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	logger := slog.Default()

	rel := inmemory.New(logger)
	svc := room.NewService(
		roomRedis.NewRepo(rc, logger, time.Hour),
		connInmemory.NewRepo(logger),
		rel,
		logger,
		&room.Config{MembersLimit: 9, Secret: "e2e-secret"},
	)

	return &harness{t: t, svc: svc, rel: rel, loop: &eventLoop{}}
}

// connect builds the participant's client session and wires it to the room
// channels, mirroring what the websocket controller does per connection.
func (h *harness) connect(ctx context.Context, memberId string) *participant {
	h.t.Helper()

	player := &fakePlayer{}
	p := &participant{id: memberId, player: player}

	p.session = peerlink.NewSession(&peerlink.SessionConfig{
		LocalId: memberId,
		Sender: peerlink.SignalSenderFunc(func(ctx context.Context, envelope domain.SignalEnvelope) error {
			return h.svc.RelaySignal(ctx, &room.RelaySignalParams{RoomId: h.roomId, Envelope: envelope})
		}),
		NewConn: func() (peerlink.PeerConnection, error) { return &fakeConn{}, nil },
		Player:  player,
		Device:  fakeDevice{},
		Leave: func(ctx context.Context) {
			h.svc.LeaveRoom(ctx, &room.LeaveRoomParams{RoomId: h.roomId, MemberId: memberId})
		},
	}, slog.Default())

	channels := map[string]string{
		"sync":          domain.SyncChannel(h.roomId),
		"user-started":  domain.UsersStartedChannel(h.roomId),
		"user-joined":   domain.UsersJoinedChannel(h.roomId),
		"user-left":     domain.UsersLeftChannel(h.roomId),
		"webrtc-signal": domain.WebRTCChannel(h.roomId),
	}
	for event, channel := range channels {
		event := event
		_, err := h.rel.Subscribe(ctx, channel, event, func(payload json.RawMessage) {
			h.loop.queue = append(h.loop.queue, delivery{sess: p.session, event: event, payload: payload})
		})
		require.NoError(h.t, err)
	}

	return p
}

func TestWatchPartyEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// amy creates the room and joins first
	created, err := h.svc.CreateRoom(ctx, &room.CreateRoomParams{
		Username: "amy",
		VideoURL: "https://example.com/v/feature-film",
	})
	require.NoError(t, err)
	h.roomId = created.RoomId

	amyJoin, err := h.svc.JoinRoom(ctx, &room.JoinRoomParams{
		ConnectToken: created.ConnectToken,
		RoomId:       h.roomId,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{amyJoin.MemberId}, amyJoin.State.Participants)
	assert.False(t, amyJoin.State.Player.IsPlaying)
	amy := h.connect(ctx, amyJoin.MemberId)

	// ben joins through a fresh join session
	benSession, err := h.svc.CreateJoinSession(ctx, &room.CreateJoinSessionParams{
		Username: "ben",
		RoomId:   h.roomId,
	})
	require.NoError(t, err)

	benJoin, err := h.svc.JoinRoom(ctx, &room.JoinRoomParams{
		ConnectToken: benSession.ConnectToken,
		RoomId:       h.roomId,
	})
	require.NoError(t, err)
	assert.Len(t, benJoin.State.Participants, 2)
	ben := h.connect(ctx, benJoin.MemberId)
	h.loop.drain(ctx)

	// first ready: the gate stays closed
	readyResp, err := h.svc.MarkReady(ctx, &room.MarkReadyParams{RoomId: h.roomId, SenderId: amy.id})
	require.NoError(t, err)
	assert.Equal(t, 1, readyResp.ReadyCount)
	assert.False(t, readyResp.Started)
	h.loop.drain(ctx)
	assert.False(t, amy.session.Reconciler.ControlsEnabled())
	assert.False(t, ben.session.Reconciler.ControlsEnabled())

	// second ready: everyone is in, controls unlock on both sides
	readyResp, err = h.svc.MarkReady(ctx, &room.MarkReadyParams{RoomId: h.roomId, SenderId: ben.id})
	require.NoError(t, err)
	assert.True(t, readyResp.Started)
	h.loop.drain(ctx)
	assert.True(t, amy.session.Reconciler.ControlsEnabled())
	assert.True(t, ben.session.Reconciler.ControlsEnabled())

	// amy turns her camera on; the handshake crosses the relay
	require.NoError(t, amy.session.ToggleMedia(ctx, true))
	h.loop.drain(ctx)
	assert.True(t, amy.session.Orchestrator.LinkStable(ben.id))
	assert.True(t, ben.session.Orchestrator.LinkStable(amy.id))

	// amy presses play: ben's player follows without re-broadcasting
	_, err = h.svc.BroadcastPlayback(ctx, &room.BroadcastPlaybackParams{
		RoomId:   h.roomId,
		SenderId: amy.id,
		Kind:     domain.PlaybackPlay,
		Time:     12.5,
	})
	require.NoError(t, err)
	h.loop.drain(ctx)
	assert.True(t, ben.player.playing)
	// amy's own event echoed back but was ignored by her reconciler
	assert.Zero(t, amy.player.plays)

	// a late joiner is seeded with the live snapshot, not the initial one
	cadSession, err := h.svc.CreateJoinSession(ctx, &room.CreateJoinSessionParams{
		Username: "cad",
		RoomId:   h.roomId,
	})
	require.NoError(t, err)
	cadJoin, err := h.svc.JoinRoom(ctx, &room.JoinRoomParams{
		ConnectToken: cadSession.ConnectToken,
		RoomId:       h.roomId,
	})
	require.NoError(t, err)
	assert.True(t, cadJoin.State.Player.IsPlaying)
	assert.Equal(t, 12.5, cadJoin.State.Player.CurrentTime)
	assert.True(t, cadJoin.State.Started)
	h.loop.drain(ctx)

	// ben leaves: amy's link to him comes down, the room lives on
	ben.session.Leave(ctx)
	h.loop.drain(ctx)
	assert.False(t, amy.session.Orchestrator.LinkStable(ben.id))

	state, err := h.svc.GetRoomState(ctx, h.roomId)
	require.NoError(t, err)
	assert.Len(t, state.Participants, 2)
	assert.NotContains(t, state.Participants, ben.id)
}
