package execution

import (
	"bytes"
	"encoding/json"
	"time"
)

// Frame is the envelope of every message on the event stream.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeFrame parses one text frame from the event stream. It reports false
// for malformed JSON, unknown event types and events missing the fields the
// reducer needs. now supplies the start time when execution_start carries
// none.
func DecodeFrame(data []byte, now func() time.Time) (Event, bool) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, false
	}
	var payload any
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return nil, false
		}
	}
	return decodePayload(frame.Type, frame.Data, record(payload), now)
}

func decodePayload(eventType string, raw json.RawMessage, p map[string]any, now func() time.Time) (Event, bool) {
	switch eventType {
	case "status":
		execInfo := record(record(p["status"])["exec_info"])
		remaining, ok := number(execInfo, "queue_remaining")
		if !ok {
			return nil, false
		}
		return Status{QueueRemaining: int(remaining)}, true

	case "execution_start":
		ev := ExecutionStart{PromptID: str(p, "prompt_id")}
		if ms, ok := number(p, "timestamp"); ok {
			ev.Timestamp = time.UnixMilli(int64(ms))
		} else if now != nil {
			ev.Timestamp = now()
		} else {
			ev.Timestamp = time.Now()
		}
		return ev, true

	case "execution_cached":
		list, ok := p["nodes"].([]any)
		if !ok {
			return nil, false
		}
		ev := ExecutionCached{Nodes: make([]string, 0, len(list))}
		for _, v := range list {
			if id, ok := v.(string); ok && id != "" {
				ev.Nodes = append(ev.Nodes, id)
			}
		}
		return ev, true

	case "executing":
		return Executing{Node: str(p, "node"), DisplayNode: str(p, "display_node")}, true

	case "executed":
		node := str(p, "node")
		if node == "" {
			return nil, false
		}
		return Executed{Node: node, DisplayNode: str(p, "display_node"), Output: nodeOutput(p["output"])}, true

	case "execution_error":
		return ExecutionError{Node: str(p, "node_id"), Message: str(p, "exception_message")}, true

	case "execution_interrupted":
		return ExecutionInterrupted{Node: str(p, "node_id")}, true

	case "execution_success":
		return ExecutionSuccess{PromptID: str(p, "prompt_id")}, true

	case "progress":
		node := str(p, "node")
		value, okValue := number(p, "value")
		maxValue, okMax := number(p, "max")
		if node == "" || !okValue || !okMax {
			return nil, false
		}
		return Progress{Node: node, Value: value, Max: maxValue}, true

	case "progress_state":
		nodes := record(p["nodes"])
		if nodes == nil {
			return nil, false
		}
		// Entries are applied in document order; it matters when two ids
		// alias the same display id.
		keys := progressStateKeys(raw)

		ev := ProgressState{Nodes: make([]ProgressStateNode, 0, len(keys))}
		for _, k := range keys {
			entry := record(nodes[k])
			id := str(entry, "node_id")
			if id == "" {
				continue
			}
			n := ProgressStateNode{
				NodeID:        id,
				DisplayNodeID: str(entry, "display_node_id"),
				State:         str(entry, "state"),
			}
			value, okValue := number(entry, "value")
			maxValue, okMax := number(entry, "max")
			if okValue && okMax {
				n.HasProgress, n.Value, n.Max = true, value, maxValue
			}
			ev.Nodes = append(ev.Nodes, n)
		}
		return ev, true

	default:
		return nil, false
	}
}

func nodeOutput(v any) *NodeOutput {
	rec := record(v)
	if rec == nil {
		return nil
	}
	out := NodeOutput{
		Images:  fileOutputs(rec["images"]),
		Latents: fileOutputs(rec["latents"]),
	}
	if len(out.Images) == 0 && len(out.Latents) == 0 {
		return nil
	}
	return &out
}

func fileOutputs(v any) []FileOutput {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var files []FileOutput
	for _, entry := range list {
		rec := record(entry)
		name := str(rec, "filename")
		if name == "" {
			continue
		}
		files = append(files, FileOutput{Filename: name, Subfolder: str(rec, "subfolder"), Type: str(rec, "type")})
	}
	return files
}

// progressStateKeys lists the keys of data.nodes in document order. A key
// repeated in the document keeps its first position.
func progressStateKeys(raw json.RawMessage) []string {
	var data struct {
		Nodes json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data.Nodes))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func record(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func number(m map[string]any, key string) (float64, bool) {
	n, ok := m[key].(float64)
	return n, ok
}
