package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend upgrades /ws, records the first client message and then writes
// the given frames.
func fakeBackend(t *testing.T, frames []string, handshake chan<- map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		assert.Equal(t, "client-1", r.URL.Query().Get("clientId"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]any
		if err := conn.ReadJSON(&msg); err == nil {
			handshake <- msg
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketDialer(t *testing.T) {
	handshake := make(chan map[string]any, 1)
	frames := []string{
		`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":0}}}}`,
		`{"type":"executing","data":{"node":"3"}}`,
	}
	srv := fakeBackend(t, frames, handshake)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := WebSocketDialer{}.Dial(ctx, srv.URL, "client-1")
	require.NoError(t, err)
	defer conn.Close()

	select {
	case msg := <-handshake:
		assert.Equal(t, "feature_flags", msg["type"])
		assert.Equal(t, map[string]any{"supports_preview_metadata": true}, msg["data"])
	case <-ctx.Done():
		t.Fatal("no handshake received")
	}

	for _, want := range frames {
		got, err := conn.Next(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, want, string(got), "binary frames are skipped")
	}

	require.NoError(t, conn.Close())
	_, err = conn.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, conn.Close(), "closing twice is harmless")
}

func TestWebSocketDialer_NextHonoursContext(t *testing.T) {
	handshake := make(chan map[string]any, 1)
	srv := fakeBackend(t, nil, handshake)

	conn, err := WebSocketDialer{}.Dial(context.Background(), srv.URL, "client-1")
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = conn.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebSocketDialer_BadURL(t *testing.T) {
	_, err := WebSocketDialer{}.Dial(context.Background(), "::nope", "c")
	assert.Error(t, err)
}

func TestSocketIORelayFraming(t *testing.T) {
	c := &sioConn{queue: newFrameQueue(4)}
	c.relay("executed")(map[string]any{"node": "9"})
	c.relay("execution_success")()

	got, err := c.Next(context.Background())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got, &decoded))
	assert.Equal(t, "executed", decoded["type"])
	assert.Equal(t, map[string]any{"node": "9"}, decoded["data"])

	got, err = c.Next(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"execution_success","data":null}`, string(got))
}
