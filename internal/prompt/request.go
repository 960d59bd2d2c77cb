package prompt

import (
	"encoding/json"
	"fmt"
)

// Link references output Output of node NodeID. It encodes as the two element
// array [nodeId, outputIndex] the backend expects.
type Link struct {
	NodeID string
	Output int
}

func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.NodeID, l.Output})
}

func (l *Link) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("link must have two elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &l.NodeID); err != nil {
		return fmt.Errorf("link node id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &l.Output); err != nil {
		return fmt.Errorf("link output index: %w", err)
	}
	return nil
}

// Meta is informational data the backend keeps with a node.
type Meta struct {
	Title string `json:"title"`
}

// Node is one entry of the request graph. Input values are either constants
// or a Link.
type Node struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
	Meta      *Meta          `json:"_meta,omitempty"`
}

// Request is the executable graph keyed by node id.
type Request map[string]Node

// Result is the outcome of Compile.
type Result struct {
	Request  Request
	Errors   []string
	Warnings []string
}

// Blocked reports whether the request must not be submitted.
func (r Result) Blocked() bool { return len(r.Errors) > 0 }

// NeedsConfirmation reports whether the request may be submitted only after
// the user accepts the warnings.
func (r Result) NeedsConfirmation() bool { return !r.Blocked() && len(r.Warnings) > 0 }
