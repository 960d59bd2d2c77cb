package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/toucan/internal/graph"
	"github.com/specialistvlad/toucan/internal/inmemorystore"
	"github.com/specialistvlad/toucan/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() graph.Graph {
	return graph.Graph{
		Nodes: []graph.CanvasNode{{
			ID:       "n1",
			Type:     "comfy",
			Position: graph.Position{X: 10, Y: 20},
			Data: graph.NodeData{
				Label:          "Load Checkpoint",
				NodeType:       "CheckpointLoaderSimple",
				WidgetValues:   map[string]any{"ckpt_name": "sd15.safetensors"},
				WidgetControls: map[string]any{"seed": "increment"},
			},
		}},
		Edges:    []graph.Edge{{ID: "e1", Source: "n1", SourceHandle: "out-MODEL", Target: "n2", TargetHandle: "in-model"}},
		Viewport: graph.Viewport{X: 1, Y: 2, Zoom: 0.5},
	}
}

func TestCreate(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("X", 3600))
	snap := Create(graph.Graph{}, now)
	assert.Equal(t, Version, snap.Version)
	assert.Equal(t, "2025-03-04T04:06:07.008Z", snap.SavedAt)
	assert.NotNil(t, snap.Graph.Nodes)
	assert.NotNil(t, snap.Graph.Edges)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"savedAt":"2025-03-04T04:06:07.008Z",
		"graph":{"nodes":[],"edges":[],"viewport":{"x":0,"y":0,"zoom":0}}}`, string(data))
}

func TestDecode_RoundTripsGraph(t *testing.T) {
	snap := Create(sampleGraph(), time.Now())
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_RejectsMalformed(t *testing.T) {
	payloads := map[string]string{
		"not json":           `{`,
		"not an object":      `[]`,
		"null":               `null`,
		"wrong version":      `{"version":2,"savedAt":"x","graph":{"nodes":[],"edges":[],"viewport":{}}}`,
		"version as string":  `{"version":"1","savedAt":"x","graph":{"nodes":[],"edges":[],"viewport":{}}}`,
		"missing savedAt":    `{"version":1,"graph":{"nodes":[],"edges":[],"viewport":{}}}`,
		"numeric savedAt":    `{"version":1,"savedAt":5,"graph":{"nodes":[],"edges":[],"viewport":{}}}`,
		"missing graph":      `{"version":1,"savedAt":"x"}`,
		"nodes not array":    `{"version":1,"savedAt":"x","graph":{"nodes":{},"edges":[],"viewport":{}}}`,
		"edges missing":      `{"version":1,"savedAt":"x","graph":{"nodes":[],"viewport":{}}}`,
		"viewport not obj":   `{"version":1,"savedAt":"x","graph":{"nodes":[],"edges":[],"viewport":3}}`,
		"node with bad type": `{"version":1,"savedAt":"x","graph":{"nodes":[{"id":7}],"edges":[],"viewport":{}}}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseWorkflow(t *testing.T) {
	bare, err := json.Marshal(sampleGraph())
	require.NoError(t, err)
	g, err := ParseWorkflow(bare)
	require.NoError(t, err)
	assert.Equal(t, "CheckpointLoaderSimple", g.Nodes[0].Data.NodeType)

	wrapped, err := json.Marshal(Create(sampleGraph(), time.Now()))
	require.NoError(t, err)
	g, err = ParseWorkflow(wrapped)
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)

	_, err = ParseWorkflow([]byte(`{"version":9}`))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ParseWorkflow([]byte(`{"nodes":[]}`))
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = ParseWorkflow([]byte(`nope`))
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := inmemorystore.New()

	_, err := Load(ctx, store)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := Save(ctx, store, sampleGraph(), time.Now())
	require.NoError(t, err)

	loaded, err := Load(ctx, store)
	require.NoError(t, err)
	if diff := cmp.Diff(saved, loaded); diff != "" {
		t.Errorf("loaded snapshot mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.Set(ctx, kvstore.WorkflowKey, []byte(`{"version":1}`)))
	_, err = Load(ctx, store)
	assert.ErrorIs(t, err, ErrInvalid)
}

type failingStore struct{ kvstore.Store }

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestSaveAndLoad_StoreErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Save(ctx, failingStore{}, sampleGraph(), time.Now())
	assert.ErrorContains(t, err, "disk on fire")

	_, err = Load(ctx, failingStore{})
	assert.ErrorContains(t, err, "disk on fire")
	assert.NotErrorIs(t, err, ErrInvalid)
}
