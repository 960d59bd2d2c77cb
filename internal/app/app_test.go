package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/specialistvlad/toucan/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objectInfoFixture = `{
  "EmptyLatentImage": {
    "input": {"required": {"width": ["INT", {"default": 512, "min": 16}]}},
    "output": ["LATENT"],
    "output_name": ["LATENT"],
    "name": "EmptyLatentImage",
    "display_name": "Empty Latent Image",
    "category": "latent"
  },
  "SaveLatent": {
    "input": {"required": {"samples": ["LATENT"]}},
    "output": [],
    "name": "SaveLatent",
    "display_name": "Save Latent",
    "category": "latent",
    "output_node": true
  }
}`

const validWorkflow = `{
  "nodes": [
    {"id": "1", "type": "comfy", "position": {"x": 0, "y": 0}, "data": {"label": "Empty Latent Image", "nodeType": "EmptyLatentImage", "widgetValues": {"width": 768}}},
    {"id": "2", "type": "comfy", "position": {"x": 300, "y": 0}, "data": {"label": "Save Latent", "nodeType": "SaveLatent", "widgetValues": {}}}
  ],
  "edges": [
    {"id": "e1", "source": "1", "sourceHandle": "out-LATENT", "target": "2", "targetHandle": "in-samples"}
  ],
  "viewport": {"x": 0, "y": 0, "zoom": 1}
}`

const brokenWorkflow = `{
  "nodes": [
    {"id": "2", "type": "comfy", "position": {"x": 0, "y": 0}, "data": {"label": "Save Latent", "nodeType": "SaveLatent", "widgetValues": {}}}
  ],
  "edges": [],
  "viewport": {"x": 0, "y": 0, "zoom": 1}
}`

// fakeComfy serves the HTTP endpoints and the /ws event stream. Frames are
// written once release is closed.
type fakeComfy struct {
	srv     *httptest.Server
	frames  []string
	release chan struct{}
	once    sync.Once
	// dropAfterFrames closes each stream once its frames were written.
	dropAfterFrames bool

	mu         sync.Mutex
	prompts    []map[string]any
	interrupts []string
	dials      atomic.Int32
}

func newFakeComfy(t *testing.T, frames []string) *fakeComfy {
	t.Helper()
	f := &fakeComfy{frames: frames, release: make(chan struct{})}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/object_info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, objectInfoFixture)
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.prompts = append(f.prompts, body)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"prompt_id": "p-1", "number": 3, "node_errors": {}}`)
	})
	mux.HandleFunc("/interrupt", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.interrupts = append(f.interrupts, body["prompt_id"])
		f.mu.Unlock()
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		f.dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage() // feature flags

		select {
		case <-f.release:
		case <-r.Context().Done():
			return
		}
		for _, frame := range f.frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		if f.dropAfterFrames {
			return
		}
		_, _, _ = conn.ReadMessage()
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeComfy) releaseFrames() {
	f.once.Do(func() { close(f.release) })
}

func (f *fakeComfy) promptBodies() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.prompts...)
}

func (f *fakeComfy) interruptIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.interrupts...)
}

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCatalog(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	entries, err := a.Catalog(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Empty Latent Image", entries[0].DisplayName)

	entries, err = a.Catalog(context.Background(), "save")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "SaveLatent", entries[0].Name)
}

func TestValidateFile(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	report, err := a.ValidateFile(context.Background(), writeWorkflow(t, validWorkflow))
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Nodes)
	assert.Equal(t, 1, report.Edges)
	assert.Empty(t, report.Warnings)

	report, err = a.ValidateFile(context.Background(), writeWorkflow(t, brokenWorkflow))
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{`Node "Save Latent" (2) is missing required input "samples".`}, report.Errors)

	_, err = a.ValidateFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read workflow")
}

func TestValidateFile_InvalidEdge(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	workflow := `{
	  "nodes": [
	    {"id": "1", "type": "comfy", "position": {"x": 0, "y": 0}, "data": {"label": "A", "nodeType": "EmptyLatentImage", "widgetValues": {}}},
	    {"id": "2", "type": "comfy", "position": {"x": 0, "y": 0}, "data": {"label": "B", "nodeType": "SaveLatent", "widgetValues": {}}}
	  ],
	  "edges": [{"id": "bad", "source": "2", "sourceHandle": "out-LATENT", "target": "1", "targetHandle": "in-width"}],
	  "viewport": {"x": 0, "y": 0, "zoom": 1}
	}`
	report, err := a.ValidateFile(context.Background(), writeWorkflow(t, workflow))
	require.NoError(t, err)
	assert.Contains(t, report.Errors, "Edge bad is invalid: unresolved endpoint.")
}

func TestQueue(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	outcome, err := a.Queue(context.Background(), writeWorkflow(t, validWorkflow), QueueOptions{})
	require.NoError(t, err)
	require.Equal(t, session.QueueSubmitted, outcome.Status)
	assert.Equal(t, "Prompt queued (p-1).", outcome.Message())

	bodies := backend.promptBodies()
	require.Len(t, bodies, 1)
	promptBody := bodies[0]["prompt"].(map[string]any)
	assert.Equal(t, map[string]any{"width": float64(768)}, promptBody["1"].(map[string]any)["inputs"])
	assert.Equal(t, map[string]any{"samples": []any{"1", float64(0)}}, promptBody["2"].(map[string]any)["inputs"])
	extra := bodies[0]["extra_data"].(map[string]any)
	assert.Equal(t, a.ClientID(), extra["client_id"])

	assert.Equal(t, execution.PhaseQueued, a.Monitor().State().Phase)
	assert.Equal(t, "p-1", a.Monitor().State().PromptID)
}

func TestQueue_Blocked(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	outcome, err := a.Queue(context.Background(), writeWorkflow(t, brokenWorkflow), QueueOptions{Follow: true})
	require.NoError(t, err)
	assert.Equal(t, session.QueueBlocked, outcome.Status)
	assert.Empty(t, backend.promptBodies())
}

func TestQueue_Follow(t *testing.T) {
	backend := newFakeComfy(t, []string{
		`{"type":"execution_start","data":{"prompt_id":"p-1"}}`,
		`{"type":"executing","data":{"node":"1","prompt_id":"p-1"}}`,
		`{"type":"executed","data":{"node":"2","output":{"latents":[{"filename":"out.latent","type":"output"}]},"prompt_id":"p-1"}}`,
		`{"type":"execution_success","data":{"prompt_id":"p-1"}}`,
	})
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var phases []execution.Phase
	outcome, err := a.Queue(ctx, writeWorkflow(t, validWorkflow), QueueOptions{
		Follow: true,
		OnState: func(s execution.State) {
			phases = append(phases, s.Phase)
			if s.Phase == execution.PhaseQueued {
				backend.releaseFrames()
			}
		},
	})
	require.NoError(t, err)
	require.Equal(t, session.QueueSubmitted, outcome.Status)

	final := a.Monitor().State()
	assert.Equal(t, execution.PhaseIdle, final.Phase)
	assert.Equal(t, "p-1", final.PromptID)
	assert.Equal(t, execution.StatusCompleted, final.NodeStatuses["2"])

	assert.Equal(t, execution.PhaseQueued, phases[0])
	assert.Contains(t, phases, execution.PhaseRunning)
	assert.Equal(t, execution.PhaseIdle, phases[len(phases)-1])
}

func TestQueue_FollowSlowSubscriberStillFinishes(t *testing.T) {
	frames := []string{`{"type":"execution_start","data":{"prompt_id":"p-1"}}`}
	for i := 1; i <= 300; i++ {
		frames = append(frames, fmt.Sprintf(`{"type":"progress","data":{"node":"1","value":%d,"max":300,"prompt_id":"p-1"}}`, i))
	}
	frames = append(frames, `{"type":"execution_success","data":{"prompt_id":"p-1"}}`)
	backend := newFakeComfy(t, frames)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var last execution.State
	outcome, err := a.Queue(ctx, writeWorkflow(t, validWorkflow), QueueOptions{
		Follow: true,
		OnState: func(s execution.State) {
			if s.Phase == execution.PhaseQueued {
				backend.releaseFrames()
			}
			time.Sleep(2 * time.Millisecond)
			last = s
		},
	})
	require.NoError(t, err)
	require.Equal(t, session.QueueSubmitted, outcome.Status)

	assert.Equal(t, execution.PhaseIdle, last.Phase)
	assert.Equal(t, "p-1", last.PromptID)
	assert.Empty(t, backend.interruptIDs())
}

func TestQueue_FollowCancelInterrupts(t *testing.T) {
	backend := newFakeComfy(t, []string{
		`{"type":"execution_start","data":{"prompt_id":"p-1"}}`,
		`{"type":"executing","data":{"node":"1","prompt_id":"p-1"}}`,
	})
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := a.Queue(ctx, writeWorkflow(t, validWorkflow), QueueOptions{
		Follow: true,
		OnState: func(s execution.State) {
			switch {
			case s.Phase == execution.PhaseQueued:
				backend.releaseFrames()
			case s.CurrentNodeID == "1":
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"p-1"}, backend.interruptIDs())
}

func TestWatch_Reconnects(t *testing.T) {
	backend := newFakeComfy(t, []string{`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":4}}}}`})
	backend.dropAfterFrames = true
	backend.releaseFrames()
	a, logs := SetupAppTest(t, backend.srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, nil) }()

	require.Eventually(t, func() bool { return backend.dials.Load() >= 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
	assert.Equal(t, 4, a.Monitor().State().QueueRemaining)
	assert.Contains(t, logs.String(), "Event stream lost, reconnecting.")
}

func TestInterrupt(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	res := a.Interrupt(context.Background(), "p-9")
	assert.True(t, res.OK)
	assert.Equal(t, []string{"p-9"}, backend.interruptIDs())
}

func TestWorkflowSaveAndRestore(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)
	ctx := context.Background()

	_, err := a.RestoreWorkflow(ctx)
	require.ErrorIs(t, err, ErrNothingSaved)

	snap, err := a.SaveWorkflow(ctx, writeWorkflow(t, validWorkflow))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)

	g, err := a.RestoreWorkflow(ctx)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "EmptyLatentImage", g.Nodes[0].Data.NodeType)
	assert.Equal(t, "e1", g.Edges[0].ID)
}

func TestHealthHandler(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)
	a.Monitor().Apply(execution.Status{QueueRemaining: 2})
	a.Monitor().MarkQueued("p-5")

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","phase":"queued","promptId":"p-5","queueRemaining":2}`, rec.Body.String())
}

func TestOutputURLs(t *testing.T) {
	backend := newFakeComfy(t, nil)
	a, _ := SetupAppTest(t, backend.srv.URL, nil)

	s := execution.Empty()
	s.NodeOutputs = map[string]execution.NodeOutput{
		"9": {Images: []execution.FileOutput{{Filename: "b.png", Type: "output"}}},
		"3": {Images: []execution.FileOutput{{Filename: "a.png", Subfolder: "x", Type: "temp"}, {}}},
	}

	assert.Equal(t, []string{
		backend.srv.URL + "/view?filename=a.png&subfolder=x&type=temp",
		backend.srv.URL + "/view?filename=b.png&type=output",
	}, a.OutputURLs(s))
}
