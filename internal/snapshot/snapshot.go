// Package snapshot versions, validates and persists the editor graph.
//
// A snapshot is either accepted whole or rejected; a restore never applies
// part of a payload.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/toucan/internal/ctxlog"
	"github.com/specialistvlad/toucan/internal/graph"
	"github.com/specialistvlad/toucan/internal/kvstore"
)

// Version is the only envelope version this package reads and writes.
const Version = 1

// savedAtLayout matches the ISO-8601 form browsers produce.
const savedAtLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrInvalid marks a payload that is not a well-formed snapshot.
	ErrInvalid = errors.New("invalid workflow snapshot")
	// ErrNotFound is returned by Load when nothing was saved yet.
	ErrNotFound = errors.New("no saved workflow")
)

// WorkflowSnapshot is the persisted envelope around an exported graph.
type WorkflowSnapshot struct {
	Version int         `json:"version"`
	SavedAt string      `json:"savedAt"`
	Graph   graph.Graph `json:"graph"`
}

// Create wraps g in a current-version envelope stamped with now.
func Create(g graph.Graph, now time.Time) WorkflowSnapshot {
	if g.Nodes == nil {
		g.Nodes = []graph.CanvasNode{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	return WorkflowSnapshot{
		Version: Version,
		SavedAt: now.UTC().Format(savedAtLayout),
		Graph:   g,
	}
}

// envelope mirrors WorkflowSnapshot with every field left raw so the shape
// can be checked before anything is decoded.
type envelope struct {
	Version json.RawMessage `json:"version"`
	SavedAt json.RawMessage `json:"savedAt"`
	Graph   json.RawMessage `json:"graph"`
}

type rawGraph struct {
	Nodes    json.RawMessage `json:"nodes"`
	Edges    json.RawMessage `json:"edges"`
	Viewport json.RawMessage `json:"viewport"`
}

// Decode parses and validates a snapshot. Any failure wraps ErrInvalid.
func Decode(data []byte) (WorkflowSnapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return WorkflowSnapshot{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var version float64
	if err := json.Unmarshal(env.Version, &version); err != nil || version != Version {
		return WorkflowSnapshot{}, fmt.Errorf("%w: unsupported version %s", ErrInvalid, string(env.Version))
	}
	if kind(env.SavedAt) != '"' {
		return WorkflowSnapshot{}, fmt.Errorf("%w: savedAt must be a string", ErrInvalid)
	}
	if err := checkGraph(env.Graph); err != nil {
		return WorkflowSnapshot{}, err
	}

	var snap WorkflowSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return WorkflowSnapshot{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return snap, nil
}

func checkGraph(data json.RawMessage) error {
	if kind(data) != '{' {
		return fmt.Errorf("%w: graph must be an object", ErrInvalid)
	}
	var g rawGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch {
	case kind(g.Nodes) != '[':
		return fmt.Errorf("%w: graph.nodes must be an array", ErrInvalid)
	case kind(g.Edges) != '[':
		return fmt.Errorf("%w: graph.edges must be an array", ErrInvalid)
	case kind(g.Viewport) != '{':
		return fmt.Errorf("%w: graph.viewport must be an object", ErrInvalid)
	}
	return nil
}

// kind returns the first significant byte of a JSON value, or 0 when absent.
func kind(data json.RawMessage) byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}

// ParseWorkflow accepts either a snapshot envelope or a bare exported graph.
func ParseWorkflow(data []byte) (graph.Graph, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return graph.Graph{}, fmt.Errorf("parsing workflow: %w", err)
	}
	if _, ok := probe["version"]; ok {
		snap, err := Decode(data)
		if err != nil {
			return graph.Graph{}, err
		}
		return snap.Graph, nil
	}
	if err := checkGraph(data); err != nil {
		return graph.Graph{}, err
	}
	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return graph.Graph{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return g, nil
}

// Save stores a fresh snapshot of g under kvstore.WorkflowKey.
func Save(ctx context.Context, store kvstore.Store, g graph.Graph, now time.Time) (WorkflowSnapshot, error) {
	snap := Create(g, now)
	data, err := json.Marshal(snap)
	if err != nil {
		return WorkflowSnapshot{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := store.Set(ctx, kvstore.WorkflowKey, data); err != nil {
		return WorkflowSnapshot{}, fmt.Errorf("saving snapshot: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Saved workflow snapshot",
		"nodes", len(snap.Graph.Nodes), "edges", len(snap.Graph.Edges), "saved_at", snap.SavedAt)
	return snap, nil
}

// Load reads the stored snapshot. It returns ErrNotFound when nothing was
// saved and an error wrapping ErrInvalid when the stored payload is damaged.
func Load(ctx context.Context, store kvstore.Store) (WorkflowSnapshot, error) {
	data, ok, err := store.Get(ctx, kvstore.WorkflowKey)
	if err != nil {
		return WorkflowSnapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}
	if !ok {
		return WorkflowSnapshot{}, ErrNotFound
	}
	return Decode(data)
}
