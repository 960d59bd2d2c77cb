package comfy

import (
	"context"
	"fmt"
	"net/http"
)

// InterruptResult is the outcome of Interrupt.
type InterruptResult struct {
	OK      bool
	Message string
}

// Interrupt asks the backend to stop the given run with POST /interrupt. It
// does not wait for the run to actually stop.
func (c *Client) Interrupt(ctx context.Context, promptID string) InterruptResult {
	resp, err := c.do(ctx, http.MethodPost, "/interrupt", map[string]string{"prompt_id": promptID})
	if err != nil {
		return InterruptResult{Message: msgUnreachable}
	}
	if !resp.ok() {
		msg, ok := extractErrorMessage(resp.payload())
		if !ok {
			msg = fmt.Sprintf("Failed to interrupt execution (%d).", resp.status)
		}
		return InterruptResult{Message: msg}
	}
	return InterruptResult{OK: true}
}
