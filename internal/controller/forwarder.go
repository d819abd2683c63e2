package controller

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/couchsync/server/internal/domain"
	"github.com/couchsync/server/internal/relay"
	"github.com/couchsync/server/internal/service/room"
)

// subscribeRoomChannels wires the relay channels of a room to one websocket
// connection. Envelopes are forwarded as-is: self-echo suppression is the
// receiving client's job, except webrtc envelopes, which are targeted and
// only delivered to their addressee.
func (c *controller) subscribeRoomChannels(ctx context.Context, conn *websocket.Conn, roomId, memberId string) (relay.UnsubscribeFunc, error) {
	forward := func(outputType string) relay.Handler {
		return func(payload json.RawMessage) {
			c.writeToConn(ctx, conn, &Output{
				Type:    outputType,
				Payload: payload,
			})
		}
	}

	subscriptions := []struct {
		channel string
		event   string
		handler relay.Handler
	}{
		{domain.SyncChannel(roomId), "sync", forward("SYNC")},
		{domain.UsersStartedChannel(roomId), "user-started", forward("USER_STARTED")},
		{domain.UsersJoinedChannel(roomId), "user-joined", forward("USER_JOINED")},
		{domain.UsersLeftChannel(roomId), "user-left", forward("USER_LEFT")},
		{domain.WebRTCChannel(roomId), "webrtc-signal", func(payload json.RawMessage) {
			var envelope domain.SignalEnvelope
			if err := json.Unmarshal(payload, &envelope); err != nil {
				c.logger.DebugContext(ctx, "dropped malformed webrtc envelope", "error", err)
				return
			}

			if envelope.Target != memberId || envelope.Source == memberId {
				return
			}

			forward("WEBRTC_SIGNAL")(payload)
		}},
	}

	unsubs := make([]relay.UnsubscribeFunc, 0, len(subscriptions))
	unsubscribeAll := func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}

	for _, sub := range subscriptions {
		unsub, err := c.relay.Subscribe(ctx, sub.channel, sub.event, sub.handler)
		if err != nil {
			unsubscribeAll()
			return nil, err
		}

		unsubs = append(unsubs, unsub)
	}

	return unsubscribeAll, nil
}

// disconnect is fire-and-forget: every step is attempted, failures are
// logged and never crash the handler.
func (c *controller) disconnect(ctx context.Context, memberId, roomId string, conn *websocket.Conn) {
	if _, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		MemberId: memberId,
		RoomId:   roomId,
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to disconnect member", "error", err)
	}

	c.forgetConn(conn)
	conn.Close()
}
