package wsrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveRouter upgrades incoming requests and runs the router on them,
// optionally with a concurrent broadcaster writing through the same
// WriteFunc.
func serveRouter(t *testing.T, r *WSRouter, write WriteFunc, broadcast bool) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}

		stop := make(chan struct{})
		if broadcast {
			go func() {
				for {
					select {
					case <-stop:
						return
					default:
						write(req.Context(), conn, map[string]string{"type": "BROADCAST"})
						time.Sleep(time.Millisecond)
					}
				}
			}()
		}

		r.ServeConn(context.Background(), conn)
		close(stop)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHandleDispatchesTypedPayload(t *testing.T) {
	type echoInput struct {
		Text string `json:"text"`
	}

	r := New(nil)
	Handle(r, "ECHO", func(ctx context.Context, conn *websocket.Conn, input echoInput) error {
		return conn.WriteJSON(map[string]string{"echo": input.Text})
	})

	conn := serveRouter(t, r, nil, false)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "ECHO",
		"payload": map[string]string{"text": "hello"},
	}))

	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "hello", reply["echo"])
}

func TestHandlerErrorReportedAndLoopContinues(t *testing.T) {
	r := New(nil)
	Handle(r, "BOOM", func(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
		return errors.New("boom")
	})
	Handle(r, "PING", func(ctx context.Context, conn *websocket.Conn, _ struct{}) error {
		return conn.WriteJSON(map[string]string{"type": "PONG"})
	})

	conn := serveRouter(t, r, nil, false)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "BOOM"}))
	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "boom", reply["error"])

	// the connection survives the handler error
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "PONG", reply["type"])
}

// Error replies and concurrent broadcasts share one connection; both must
// go through the injected WriteFunc or gorilla's single-writer rule is
// violated. Run with the race detector to catch an unserialized write path.
func TestConcurrentBroadcastAndErrorReplies(t *testing.T) {
	var writeMu sync.Mutex
	write := func(_ context.Context, conn *websocket.Conn, v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	r := New(write)
	conn := serveRouter(t, r, write, true)

	const unknownFrames = 20
	go func() {
		for i := 0; i < unknownFrames; i++ {
			conn.WriteJSON(map[string]string{"type": "NO_SUCH_TYPE"})
		}
	}()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	errorReplies := 0
	for errorReplies < unknownFrames {
		var frame map[string]string
		require.NoError(t, conn.ReadJSON(&frame))

		switch {
		case frame["error"] != "":
			assert.Equal(t, "unknown message type", frame["error"])
			errorReplies++
		default:
			assert.Equal(t, "BROADCAST", frame["type"])
		}
	}
}
