package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchsync/server/internal/relay"
)

type subscription struct {
	event   string
	handler relay.Handler
}

type Relay struct {
	logger *slog.Logger
	subs   map[string]map[int]subscription
	nextId int
	mu     sync.RWMutex
}

func New(logger *slog.Logger) *Relay {
	return &Relay{
		logger: logger,
		subs:   make(map[string]map[int]subscription),
	}
}

func (r *Relay) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	r.mu.RLock()
	handlers := make([]relay.Handler, 0, len(r.subs[channel]))
	for _, sub := range r.subs[channel] {
		if sub.event == event {
			handlers = append(handlers, sub.handler)
		}
	}
	r.mu.RUnlock()

	r.logger.DebugContext(ctx, "relay publish", "channel", channel, "event", event, "subscribers", len(handlers))
	for _, handler := range handlers {
		handler(data)
	}

	return nil
}

func (r *Relay) Subscribe(ctx context.Context, channel, event string, handler relay.Handler) (relay.UnsubscribeFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[channel] == nil {
		r.subs[channel] = make(map[int]subscription)
	}

	id := r.nextId
	r.nextId++
	r.subs[channel][id] = subscription{event: event, handler: handler}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			delete(r.subs[channel], id)
			if len(r.subs[channel]) == 0 {
				delete(r.subs, channel)
			}
		})
	}, nil
}
