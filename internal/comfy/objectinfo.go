package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/specialistvlad/toucan/internal/schema"
)

// ObjectInfo fetches the raw node catalog from GET /object_info.
func (c *Client) ObjectInfo(ctx context.Context) (schema.RawObjectInfoMap, error) {
	resp, err := c.do(ctx, http.MethodGet, "/object_info", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch object_info: %w", err)
	}
	if !resp.ok() {
		msg, _ := extractErrorMessage(resp.payload())
		return nil, &StatusError{Op: "fetch object_info", StatusCode: resp.status, Status: resp.statusText, Message: msg}
	}

	var raw schema.RawObjectInfoMap
	if err := json.Unmarshal(resp.body, &raw); err != nil {
		return nil, fmt.Errorf("decode object_info: %w", err)
	}
	if raw == nil {
		raw = schema.RawObjectInfoMap{}
	}
	return raw, nil
}
