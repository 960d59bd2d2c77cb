package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/specialistvlad/toucan/internal/graph"
	"github.com/specialistvlad/toucan/internal/inmemorystore"
	"github.com/specialistvlad/toucan/internal/kvstore"
	"github.com/specialistvlad/toucan/internal/prompt"
	"github.com/specialistvlad/toucan/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchemas() schema.Map {
	return schema.Map{
		"Loader": {
			Name:        "Loader",
			DisplayName: "Load Checkpoint",
			Inputs: []schema.InputSlot{
				{Name: "ckpt_name", Group: schema.GroupRequired, Options: []string{"a.safetensors", "b.safetensors"}, SupportsWidget: true},
			},
			Outputs: []schema.OutputSlot{{Name: "MODEL", Type: "MODEL"}},
		},
		"Sampler": {
			Name:        "Sampler",
			DisplayName: "KSampler",
			Inputs: []schema.InputSlot{
				{Name: "model", Group: schema.GroupRequired, ValueType: "MODEL"},
				{Name: "seed", Group: schema.GroupRequired, ValueType: "INT", SupportsWidget: true, Config: map[string]any{"default": float64(3)}},
				{Name: "mask", Group: schema.GroupOptional, ValueType: "MASK"},
			},
			Outputs: []schema.OutputSlot{{Name: "LATENT", Type: "LATENT"}},
		},
		"Save": {
			Name:         "Save",
			DisplayName:  "Save Latent",
			IsOutputNode: true,
			Inputs:       []schema.InputSlot{{Name: "samples", Group: schema.GroupRequired, ValueType: "LATENT"}},
		},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestSession(opts Options) *Session {
	if opts.Schemas == nil {
		opts.Schemas = testSchemas()
	}
	if opts.NewID == nil {
		opts.NewID = sequentialIDs()
	}
	return New(opts)
}

type fakeBackend struct {
	requests []comfy.QueueRequest
	result   comfy.QueueResult
}

func (f *fakeBackend) QueuePrompt(_ context.Context, req comfy.QueueRequest) comfy.QueueResult {
	f.requests = append(f.requests, req)
	return f.result
}

func TestAddNode(t *testing.T) {
	s := newTestSession(Options{})

	first, err := s.AddNode("Loader")
	require.NoError(t, err)
	second, err := s.AddNode("Sampler")
	require.NoError(t, err)

	assert.Equal(t, "id-1", first.ID)
	assert.Equal(t, graph.NodeKind, first.Type)
	assert.Equal(t, graph.Position{}, first.Position)
	assert.Equal(t, "Load Checkpoint", first.Data.Label)
	assert.Equal(t, map[string]any{"ckpt_name": "a.safetensors"}, first.Data.WidgetValues)

	assert.Equal(t, graph.Position{X: 24, Y: 24}, second.Position)
	assert.Equal(t, map[string]any{"seed": float64(3)}, second.Data.WidgetValues)

	_, err = s.AddNode("Missing")
	assert.ErrorIs(t, err, ErrUnknownNodeType)
	assert.Len(t, s.Graph().Nodes, 2)
}

func TestConnect(t *testing.T) {
	s := newTestSession(Options{})
	loader, _ := s.AddNode("Loader")
	other, _ := s.AddNode("Loader")
	sampler, _ := s.AddNode("Sampler")
	save, _ := s.AddNode("Save")

	e, reason := s.Connect(loader.ID, "MODEL", sampler.ID, "model", false)
	require.Equal(t, graph.Accepted, reason)
	assert.Equal(t, "xy-edge__id-1out-MODEL-id-3in-model", e.ID)

	_, reason = s.Connect(loader.ID, "MODEL", sampler.ID, "model", false)
	assert.Equal(t, graph.Accepted, reason, "reconnecting the same slots is accepted")
	assert.Len(t, s.Graph().Edges, 1)

	_, reason = s.Connect(other.ID, "MODEL", sampler.ID, "model", false)
	assert.Equal(t, graph.RejectFanIn, reason)

	replaced, reason := s.Connect(other.ID, "MODEL", sampler.ID, "model", true)
	require.Equal(t, graph.Accepted, reason)
	edges := s.Graph().Edges
	require.Len(t, edges, 1)
	assert.Equal(t, replaced, edges[0])

	_, reason = s.Connect(loader.ID, "MODEL", save.ID, "samples", false)
	assert.Equal(t, graph.RejectType, reason)

	_, reason = s.Connect(sampler.ID, "LATENT", "ghost", "samples", false)
	assert.Equal(t, graph.RejectUnresolved, reason)

	assert.True(t, s.Disconnect(replaced.ID))
	assert.False(t, s.Disconnect(replaced.ID))
}

func TestRemoveNodeDropsEdges(t *testing.T) {
	s := newTestSession(Options{})
	loader, _ := s.AddNode("Loader")
	sampler, _ := s.AddNode("Sampler")
	save, _ := s.AddNode("Save")
	_, reason := s.Connect(loader.ID, "MODEL", sampler.ID, "model", false)
	require.Equal(t, graph.Accepted, reason)
	_, reason = s.Connect(sampler.ID, "LATENT", save.ID, "samples", false)
	require.Equal(t, graph.Accepted, reason)

	require.NoError(t, s.RemoveNode(sampler.ID))
	g := s.Graph()
	assert.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Edges)
	assert.ErrorIs(t, s.RemoveNode(sampler.ID), ErrNodeNotFound)
}

func TestSetWidgetValue(t *testing.T) {
	s := newTestSession(Options{})
	sampler, _ := s.AddNode("Sampler")

	require.NoError(t, s.SetWidgetValue(sampler.ID, "seed", float64(99)))
	assert.Equal(t, float64(3), sampler.Data.WidgetValues["seed"], "returned nodes are copies")
	assert.Equal(t, float64(99), s.Graph().Nodes[0].Data.WidgetValues["seed"])
	assert.ErrorIs(t, s.SetWidgetValue("nope", "seed", 1), ErrNodeNotFound)
}

func TestGraphReturnsCopy(t *testing.T) {
	s := newTestSession(Options{})
	_, _ = s.AddNode("Sampler")

	g := s.Graph()
	g.Nodes[0].Data.WidgetValues["seed"] = float64(1)
	g.Nodes = append(g.Nodes, graph.CanvasNode{ID: "x"})

	again := s.Graph()
	assert.Len(t, again.Nodes, 1)
	assert.Equal(t, float64(3), again.Nodes[0].Data.WidgetValues["seed"])
}

func TestSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	store := inmemorystore.New()
	now := func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	editor := newTestSession(Options{Store: store, Now: now})
	loader, _ := editor.AddNode("Loader")
	sampler, _ := editor.AddNode("Sampler")
	_, reason := editor.Connect(loader.ID, "MODEL", sampler.ID, "model", false)
	require.Equal(t, graph.Accepted, reason)
	snap, err := editor.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", snap.SavedAt)

	restored := newTestSession(Options{Store: store})
	require.True(t, restored.Restore(ctx))
	if diff := cmp.Diff(editor.Graph(), restored.Graph()); diff != "" {
		t.Errorf("restored graph mismatch (-want +got):\n%s", diff)
	}

	// A second restore is a no-op even if the store changed.
	_, err = editor.Save(ctx)
	require.NoError(t, err)
	_, _ = restored.AddNode("Save")
	assert.False(t, restored.Restore(ctx))
	assert.Len(t, restored.Graph().Nodes, 3)
}

func TestRestore_IgnoresMissingOrDamaged(t *testing.T) {
	ctx := context.Background()

	empty := newTestSession(Options{Store: inmemorystore.New()})
	assert.False(t, empty.Restore(ctx))

	store := inmemorystore.New()
	require.NoError(t, store.Set(ctx, kvstore.WorkflowKey, []byte(`{"version":1,"savedAt":"x","graph":{"nodes":[]}}`)))
	damaged := newTestSession(Options{Store: store})
	_, _ = damaged.AddNode("Loader")
	assert.False(t, damaged.Restore(ctx))
	assert.Len(t, damaged.Graph().Nodes, 1, "graph untouched")

	noStore := newTestSession(Options{})
	assert.False(t, noStore.Restore(ctx))
	_, err := noStore.Save(ctx)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestRestore_IgnoresOtherVersion(t *testing.T) {
	ctx := context.Background()
	store := inmemorystore.New()
	require.NoError(t, store.Set(ctx, kvstore.WorkflowKey, []byte(`{"version":2,"savedAt":"2025-01-01T00:00:00.000Z","graph":{"nodes":[],"edges":[],"viewport":{"x":0,"y":0,"zoom":1}}}`)))

	s := newTestSession(Options{Store: store})
	loader, _ := s.AddNode("Loader")
	before := s.Graph()

	assert.False(t, s.Restore(ctx))
	require.Len(t, s.Graph().Nodes, 1)
	assert.Equal(t, loader.ID, s.Graph().Nodes[0].ID)
	if diff := cmp.Diff(before, s.Graph()); diff != "" {
		t.Errorf("graph changed by rejected restore (-want +got):\n%s", diff)
	}
}

func buildRunnable(t *testing.T, s *Session) {
	t.Helper()
	loader, _ := s.AddNode("Loader")
	sampler, _ := s.AddNode("Sampler")
	save, _ := s.AddNode("Save")
	_, reason := s.Connect(loader.ID, "MODEL", sampler.ID, "model", false)
	require.Equal(t, graph.Accepted, reason)
	_, reason = s.Connect(sampler.ID, "LATENT", save.ID, "samples", false)
	require.Equal(t, graph.Accepted, reason)
}

func TestQueue_Blocked(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(Options{Backend: backend})
	_, _ = s.AddNode("Sampler")

	out := s.Queue(context.Background(), nil)
	assert.Equal(t, QueueBlocked, out.Status)
	assert.Contains(t, out.Errors, `Node "KSampler" (id-1) is missing required input "model".`)
	assert.Contains(t, out.Message(), "Fix the following before running:\n- ")
	assert.Empty(t, backend.requests)
}

func TestQueue_WarningsNeedConfirmation(t *testing.T) {
	backend := &fakeBackend{result: comfy.QueueResult{OK: true, PromptID: "p-1"}}
	s := newTestSession(Options{Backend: backend})
	buildRunnable(t, s)

	var asked []string
	out := s.Queue(context.Background(), func(w []string) bool {
		asked = w
		return false
	})
	assert.Equal(t, QueueDeclined, out.Status)
	assert.Equal(t, []string{`Node "KSampler" (id-2) has no value for optional input "mask".`}, asked)
	assert.Empty(t, backend.requests)

	out = s.Queue(context.Background(), nil)
	assert.Equal(t, QueueDeclined, out.Status, "no confirmation means no")

	out = s.Queue(context.Background(), func([]string) bool { return true })
	assert.Equal(t, QueueSubmitted, out.Status)
	assert.Len(t, backend.requests, 1)
	assert.Contains(t, WarningPrompt(asked), "Run anyway?")
}

func TestQueue_SubmitsAndMarksMonitor(t *testing.T) {
	backend := &fakeBackend{result: comfy.QueueResult{OK: true, PromptID: "p-7", Number: 3}}
	monitor := execution.NewMonitor(nil)
	defer monitor.Close()
	s := newTestSession(Options{Backend: backend, Monitor: monitor, ClientID: "client-1"})
	buildRunnable(t, s)

	out := s.Queue(context.Background(), func([]string) bool { return true })
	require.Equal(t, QueueSubmitted, out.Status)
	assert.Equal(t, "Prompt queued (p-7).", out.Message())

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, "client-1", req.ClientID)
	assert.Equal(t, prompt.Link{NodeID: "id-1", Output: 0}, req.Prompt["id-2"].Inputs["model"])
	workflow, ok := req.Workflow.(graph.Graph)
	require.True(t, ok)
	assert.Len(t, workflow.Nodes, 3)

	body, err := json.Marshal(req.Prompt)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"class_type":"Save"`)

	state := monitor.State()
	assert.Equal(t, execution.PhaseQueued, state.Phase)
	assert.Equal(t, "p-7", state.PromptID)
}

func TestQueue_BackendFailure(t *testing.T) {
	backend := &fakeBackend{result: comfy.QueueResult{Message: "Failed to reach the ComfyUI backend."}}
	monitor := execution.NewMonitor(nil)
	defer monitor.Close()
	s := newTestSession(Options{Backend: backend, Monitor: monitor})
	buildRunnable(t, s)

	out := s.Queue(context.Background(), func([]string) bool { return true })
	assert.Equal(t, QueueFailed, out.Status)
	assert.Equal(t, "Failed to reach the ComfyUI backend.", out.Message())
	assert.Equal(t, execution.PhaseIdle, monitor.State().Phase)

	noBackend := newTestSession(Options{})
	buildRunnable(t, noBackend)
	out = noBackend.Queue(context.Background(), func([]string) bool { return true })
	assert.Equal(t, QueueFailed, out.Status)
}
