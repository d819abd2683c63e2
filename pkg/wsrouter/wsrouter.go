package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles one decoded websocket message.
type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// WriteFunc sends one JSON value to the client. Every write the router
// performs goes through it; a caller that shares the connection with other
// writers must pass a func that serializes access, since gorilla conns do
// not support concurrent writers.
type WriteFunc func(ctx context.Context, conn *websocket.Conn, v any) error

type WSRouter struct {
	routes      map[string]HandlerFunc[json.RawMessage]
	middlewares []Middleware
	write       WriteFunc
}

func New(write WriteFunc) *WSRouter {
	if write == nil {
		write = func(_ context.Context, conn *websocket.Conn, v any) error {
			return conn.WriteJSON(v)
		}
	}

	return &WSRouter{
		routes: make(map[string]HandlerFunc[json.RawMessage]),
		write:  write,
	}
}

func (r *WSRouter) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
}

// Handle registers a typed handler for the given message type. The raw
// payload is unmarshaled into T before the handler is invoked.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		return handler(ctx, conn, input)
	}
}

// ServeConn reads messages from the connection until it fails and routes
// each one to its registered handler. Handler errors are reported to the
// client and do not terminate the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			r.write(ctx, conn, map[string]string{"error": "unknown message type"})
			continue
		}

		wrapped := func(ctx context.Context, conn *websocket.Conn, payload any) error {
			return handler(ctx, conn, payload.(json.RawMessage))
		}
		for i := len(r.middlewares) - 1; i >= 0; i-- {
			wrapped = r.middlewares[i](wrapped)
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := wrapped(msgCtx, conn, msg.Payload); err != nil {
			r.write(msgCtx, conn, map[string]string{"error": err.Error()})
		}
	}
}
