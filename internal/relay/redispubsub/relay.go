package redispubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/couchsync/server/internal/relay"
)

const keyPrefix = "relay:"

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Relay fans messages out over redis Pub/Sub so subscribers on any node
// receive them. Redis Pub/Sub is fire-and-forget: messages published while
// a subscriber is disconnected are lost, which matches the relay contract.
type Relay struct {
	rc     *redis.Client
	logger *slog.Logger
}

func New(rc *redis.Client, logger *slog.Logger) *Relay {
	return &Relay{rc: rc, logger: logger}
}

func (r *Relay) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg, err := json.Marshal(envelope{Event: event, Payload: data})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := r.rc.Publish(ctx, keyPrefix+channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", channel, err)
	}

	return nil
}

func (r *Relay) Subscribe(ctx context.Context, channel, event string, handler relay.Handler) (relay.UnsubscribeFunc, error) {
	pubsub := r.rc.Subscribe(ctx, keyPrefix+channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", channel, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("relay dropped malformed message", "channel", channel, "error", err)
				continue
			}

			if env.Event != event {
				continue
			}

			handler(env.Payload)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			pubsub.Close()
		})
	}, nil
}
