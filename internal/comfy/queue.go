package comfy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/prompt"
)

// QueueRequest is one run submission.
type QueueRequest struct {
	Prompt   prompt.Request
	ClientID string
	// Workflow is the editor graph stored with produced images. It is omitted
	// when nil.
	Workflow any
}

// QueueResult is the outcome of QueuePrompt. Message is set when OK is false.
type QueueResult struct {
	OK      bool
	Message string
	// Payload is the decoded response body, if it was JSON.
	Payload  any
	PromptID string
	Number   int
}

type queueBody struct {
	Prompt    prompt.Request `json:"prompt"`
	ExtraData queueExtra     `json:"extra_data"`
}

type queueExtra struct {
	ClientID     string        `json:"client_id"`
	ExtraPNGInfo *extraPNGInfo `json:"extra_pnginfo,omitempty"`
}

type extraPNGInfo struct {
	Workflow any `json:"workflow"`
}

// QueuePrompt submits a compiled request with POST /prompt.
func (c *Client) QueuePrompt(ctx context.Context, req QueueRequest) QueueResult {
	body := queueBody{
		Prompt:    req.Prompt,
		ExtraData: queueExtra{ClientID: req.ClientID},
	}
	if req.Workflow != nil {
		body.ExtraData.ExtraPNGInfo = &extraPNGInfo{Workflow: req.Workflow}
	}

	resp, err := c.do(ctx, http.MethodPost, "/prompt", body)
	if err != nil {
		return QueueResult{Message: msgUnreachable}
	}

	payload := resp.payload()
	if !resp.ok() {
		msg, ok := extractErrorMessage(payload)
		if !ok {
			msg = fmt.Sprintf("Failed to queue prompt (%d).", resp.status)
		}
		return QueueResult{Message: msg, Payload: payload}
	}

	result := QueueResult{OK: true, Payload: payload}
	if obj, ok := payload.(map[string]any); ok {
		result.PromptID, _ = obj["prompt_id"].(string)
		if n, ok := obj["number"].(float64); ok {
			result.Number = int(n)
		}
	}
	ctxlog.FromContext(ctx).Info("Prompt queued", "prompt_id", result.PromptID, "number", result.Number)
	return result
}
