package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/ctxlog"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	frameBuffer             = 256
)

// WebSocketDialer connects to the backend's /ws endpoint.
type WebSocketDialer struct {
	HandshakeTimeout   time.Duration
	InsecureSkipVerify bool
}

// Dial opens the stream and sends the capability announcement.
func (d WebSocketDialer) Dial(ctx context.Context, baseURL, clientID string) (Conn, error) {
	wsURL, ok := comfy.WebSocketURL(baseURL, clientID)
	if !ok {
		return nil, fmt.Errorf("invalid backend base URL %q", baseURL)
	}
	logger := ctxlog.FromContext(ctx).With("transport", "websocket", "url", wsURL)

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	if d.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for self-signed local backends
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "feature_flags", "data": featureFlags}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send feature flags: %w", err)
	}
	logger.Debug("Event stream connected")

	c := &wsConn{conn: conn, queue: newFrameQueue(frameBuffer)}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	conn  *websocket.Conn
	queue *frameQueue
}

// readLoop forwards text frames. Binary frames carry preview images and are
// skipped.
func (c *wsConn) readLoop() {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.queue.push(frame{err: err})
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !c.queue.push(frame{data: data}) {
			return
		}
	}
}

func (c *wsConn) Next(ctx context.Context) ([]byte, error) {
	return c.queue.next(ctx)
}

func (c *wsConn) Close() error {
	if !c.queue.close() {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}
