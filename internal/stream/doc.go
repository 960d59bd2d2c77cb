// Package stream opens the backend's asynchronous event channel.
//
// Two transports are provided. WebSocketDialer speaks the plain websocket
// protocol ComfyUI serves at /ws. SocketIODialer connects to socket.io
// gateways that relay the same events by name; it re-frames each event as
// the {"type": ..., "data": ...} JSON text the websocket transport yields, so
// consumers decode both the same way.
//
// Both transports send the capability announcement once, right after the
// connection opens. Reconnection is left to the caller.
package stream

import (
	"context"
	"errors"
)

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("stream closed")

// EventTypes are the event names the backend emits.
var EventTypes = []string{
	"status",
	"execution_start",
	"execution_cached",
	"executing",
	"executed",
	"execution_error",
	"execution_interrupted",
	"execution_success",
	"progress",
	"progress_state",
}

// featureFlags is the capability announcement sent on open.
var featureFlags = map[string]any{"supports_preview_metadata": true}

// Conn is an open event stream.
type Conn interface {
	// Next blocks until the next text frame arrives, ctx ends or the stream
	// fails. A stream that failed must be closed and dialed again.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens event streams.
type Dialer interface {
	Dial(ctx context.Context, baseURL, clientID string) (Conn, error)
}
