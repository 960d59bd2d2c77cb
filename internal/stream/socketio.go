package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketIODialer connects to a socket.io gateway relaying backend events.
type SocketIODialer struct {
	// Path is the socket.io endpoint path. Empty means /socket.io/.
	Path string
	// Namespace defaults to "/".
	Namespace          string
	InsecureSkipVerify bool
}

// Dial connects, waits for the connect acknowledgement and announces the
// client's capabilities.
func (d SocketIODialer) Dial(ctx context.Context, baseURL, clientID string) (Conn, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", baseURL)
	}
	namespace := d.Namespace
	if namespace == "" {
		namespace = "/"
	}
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "host", parsed.Host, "namespace", namespace)

	opts := socket.DefaultOptions()
	if d.Path != "" {
		opts.SetPath(d.Path)
	}
	if d.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) // #nosec G402 -- opt-in for self-signed local backends
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	query := url.Values{}
	query.Set("clientId", clientID)
	managerURL := fmt.Sprintf("%s://%s?%s", parsed.Scheme, parsed.Host, query.Encode())

	manager := socket.NewManager(managerURL, opts)
	io := manager.Socket(namespace, opts)

	c := &sioConn{io: io, queue: newFrameQueue(frameBuffer)}
	connected := make(chan error, 1)
	var opened atomic.Bool

	io.On(types.EventName("connect"), func(...any) {
		if !opened.CompareAndSwap(false, true) {
			return
		}
		logger.Debug("Event stream connected", "sid", io.Id())
		io.Emit("feature_flags", featureFlags)
		connected <- nil
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("socket.io connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		if opened.Load() {
			c.queue.push(frame{err: err})
			return
		}
		select {
		case connected <- err:
		default:
		}
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		c.queue.push(frame{err: fmt.Errorf("socket.io disconnected: %v", reason)})
	})
	for _, name := range EventTypes {
		io.On(types.EventName(name), c.relay(name))
	}

	io.Connect()

	select {
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out while waiting for initial connection: %w", ctx.Err())
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("failed to open event stream: %w", err)
		}
	}
	return c, nil
}

type sioConn struct {
	io    *socket.Socket
	queue *frameQueue
}

// relay re-frames a named event as {"type": name, "data": payload}.
func (c *sioConn) relay(name string) func(...any) {
	return func(args ...any) {
		var data any
		if len(args) > 0 {
			data = args[0]
		}
		encoded, err := json.Marshal(map[string]any{"type": name, "data": data})
		if err != nil {
			return
		}
		c.queue.push(frame{data: encoded})
	}
}

func (c *sioConn) Next(ctx context.Context) ([]byte, error) {
	return c.queue.next(ctx)
}

func (c *sioConn) Close() error {
	if c.queue.close() {
		c.io.Disconnect()
	}
	return nil
}
