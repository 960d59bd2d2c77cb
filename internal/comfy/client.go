package comfy

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/specialistvlad/toucan/internal/ctxlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "github.com/specialistvlad/toucan/internal/comfy"
	defaultTimeout = 30 * time.Second

	msgUnreachable = "Failed to reach the ComfyUI backend."
)

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root, for example http://127.0.0.1:8188.
	BaseURL string
	// Timeout bounds every request. Zero means 30s.
	Timeout            time.Duration
	InsecureSkipVerify bool
	// HTTPClient overrides the client built from the fields above.
	HTTPClient *http.Client
}

// Client talks to one backend.
type Client struct {
	base   string
	http   *http.Client
	tracer trace.Tracer
}

// NewClient validates the base URL and builds a pooled HTTP client.
func NewClient(opts Options) (*Client, error) {
	base, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in for self-signed local backends
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	return &Client{
		base:   base,
		http:   httpClient,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// BaseURL returns the normalized backend root without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("backend base URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("backend base URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend base URL %q has no host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// response is a completed HTTP exchange with its body read.
type response struct {
	status     int
	statusText string
	body       []byte
}

func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

// payload decodes the body as JSON, or returns nil when it is not JSON.
func (r *response) payload() any {
	var v any
	if len(r.body) == 0 || json.Unmarshal(r.body, &v) != nil {
		return nil
	}
	return v
}

// do sends one request inside a client span. body is JSON encoded when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body any) (*response, error) {
	ctx, span := c.tracer.Start(ctx, "comfy "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", c.base+path),
	)

	logger := ctxlog.FromContext(ctx).With("method", method, "path", path)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("Backend request failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
	logger.Debug("Backend responded", "status", resp.StatusCode, "elapsed", time.Since(start))

	return &response{status: resp.StatusCode, statusText: resp.Status, body: data}, nil
}

// extractErrorMessage reads {error: "..."} or {error: {message: "..."}}.
func extractErrorMessage(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	switch e := obj["error"].(type) {
	case string:
		return e, true
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg, true
		}
	}
	return "", false
}
