package relay

import (
	"context"
	"encoding/json"
)

// Handler is invoked once per published message matching the subscribed
// event, with the marshaled payload.
type Handler func(payload json.RawMessage)

// UnsubscribeFunc removes a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Relay fans envelopes out to the current subscribers of a named channel.
// It does not interpret payloads and guarantees neither exactly-once nor
// in-order delivery; subscriber logic must be idempotent.
type Relay interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Subscribe(ctx context.Context, channel, event string, handler Handler) (UnsubscribeFunc, error)
}
