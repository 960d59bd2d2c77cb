// Package session holds the state of one workflow being edited and drives
// it through the backend: nodes are added and wired under the connection
// rules, the graph is saved and restored through a kvstore, and queued runs
// are tracked by an execution.Monitor.
//
// A Session is safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/toucan/internal/comfy"
	"github.com/specialistvlad/toucan/internal/execution"
	"github.com/specialistvlad/toucan/internal/graph"
	"github.com/specialistvlad/toucan/internal/kvstore"
	"github.com/specialistvlad/toucan/internal/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/specialistvlad/toucan/internal/session"
	// nodeOffset spaces new nodes so they do not stack exactly.
	nodeOffset = 24
)

var (
	// ErrUnknownNodeType is returned by AddNode for a type missing from the
	// catalog.
	ErrUnknownNodeType = errors.New("unknown node type")
	// ErrNodeNotFound is returned for operations on a missing node id.
	ErrNodeNotFound = errors.New("node not found")
)

// Backend submits compiled runs.
type Backend interface {
	QueuePrompt(ctx context.Context, req comfy.QueueRequest) comfy.QueueResult
}

// Options configures a Session. Only Schemas is required for editing;
// Store, Backend and Monitor enable persistence, queueing and tracking.
type Options struct {
	Schemas  schema.Map
	Store    kvstore.Store
	Backend  Backend
	Monitor  *execution.Monitor
	ClientID string

	// NewID and Now default to uuid.NewString and time.Now.
	NewID func() string
	Now   func() time.Time
}

// Session is the editor state container.
type Session struct {
	mu       sync.RWMutex
	graph    graph.Graph
	schemas  schema.Map
	restored bool

	store    kvstore.Store
	backend  Backend
	monitor  *execution.Monitor
	clientID string
	newID    func() string
	now      func() time.Time
	tracer   trace.Tracer
}

// New creates an empty session.
func New(opts Options) *Session {
	s := &Session{
		graph:    graph.Graph{Nodes: []graph.CanvasNode{}, Edges: []graph.Edge{}, Viewport: graph.Viewport{Zoom: 1}},
		schemas:  opts.Schemas,
		store:    opts.Store,
		backend:  opts.Backend,
		monitor:  opts.Monitor,
		clientID: opts.ClientID,
		newID:    opts.NewID,
		now:      opts.Now,
		tracer:   otel.Tracer(tracerName),
	}
	if s.schemas == nil {
		s.schemas = schema.Map{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Graph returns a copy of the current graph.
func (s *Session) Graph() graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneGraph(s.graph)
}

// Load replaces the current graph.
func (s *Session) Load(g graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = cloneGraph(g)
}

// Schemas returns the catalog the session validates against.
func (s *Session) Schemas() schema.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schemas
}

// SetSchemas swaps the catalog, for example after it was reloaded.
func (s *Session) SetSchemas(m schema.Map) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == nil {
		m = schema.Map{}
	}
	s.schemas = m
}

// Monitor returns the execution monitor, which may be nil.
func (s *Session) Monitor() *execution.Monitor {
	return s.monitor
}

// AddNode appends an instance of nodeType with its widget defaults. Each new
// node is offset from the origin by its index.
func (s *Session) AddNode(nodeType string) (graph.CanvasNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.schemas.Lookup(nodeType)
	if !ok {
		return graph.CanvasNode{}, fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}
	offset := float64(nodeOffset * len(s.graph.Nodes))
	node := graph.CanvasNode{
		ID:       s.newID(),
		Type:     graph.NodeKind,
		Position: graph.Position{X: offset, Y: offset},
		Data: graph.NodeData{
			Label:        def.DisplayName,
			NodeType:     def.Name,
			WidgetValues: schema.Defaults(def),
		},
	}
	s.graph.Nodes = append(s.graph.Nodes, node)
	return cloneNode(node), nil
}

// RemoveNode deletes a node and every edge touching it.
func (s *Session) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.graph.Nodes, func(n graph.CanvasNode) bool { return n.ID == id })
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	s.graph.Nodes = slices.Delete(s.graph.Nodes, idx, idx+1)
	s.graph.Edges = slices.DeleteFunc(s.graph.Edges, func(e graph.Edge) bool {
		return e.Source == id || e.Target == id
	})
	return nil
}

// SetWidgetValue stores a constant input value on a node.
func (s *Session) SetWidgetValue(id, slot string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := graph.FindNode(s.graph.Nodes, id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	values := maps.Clone(node.Data.WidgetValues)
	if values == nil {
		values = map[string]any{}
	}
	values[slot] = value
	node.Data.WidgetValues = values
	return nil
}

// Connect adds the edge from source's output slot to target's input slot if
// the connection rules allow it. With replace set, an edge already feeding
// the input is removed instead of rejecting the new one. Connecting the same
// slots twice keeps a single edge.
func (s *Session) Connect(source, output, target, input string, replace bool) (graph.Edge, graph.Rejection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := graph.Edge{
		Source:       source,
		SourceHandle: graph.OutputHandle(output),
		Target:       target,
		TargetHandle: graph.InputHandle(input),
	}
	candidate.ID = graph.EdgeID(candidate)

	v := graph.Validator{Schemas: s.schemas, AllowReplace: replace}
	if reason := v.Check(candidate, s.graph.Nodes, s.graph.Edges); reason != graph.Accepted {
		return graph.Edge{}, reason
	}

	for _, e := range s.graph.Edges {
		if e.SameEndpoints(candidate) {
			return e, graph.Accepted
		}
	}
	s.graph.Edges = slices.DeleteFunc(s.graph.Edges, func(e graph.Edge) bool {
		return e.Target == candidate.Target && e.TargetHandle == candidate.TargetHandle
	})
	s.graph.Edges = append(s.graph.Edges, candidate)
	return candidate, graph.Accepted
}

// Disconnect removes the edge with the given id and reports whether it
// existed.
func (s *Session) Disconnect(edgeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.graph.Edges)
	s.graph.Edges = slices.DeleteFunc(s.graph.Edges, func(e graph.Edge) bool { return e.ID == edgeID })
	return len(s.graph.Edges) != before
}

// Validate re-checks every edge of the current graph.
func (s *Session) Validate() []graph.EdgeIssue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return graph.ValidateEdges(s.graph.Nodes, s.graph.Edges, s.schemas)
}

func cloneGraph(g graph.Graph) graph.Graph {
	out := graph.Graph{
		Nodes:    make([]graph.CanvasNode, len(g.Nodes)),
		Edges:    slices.Clone(g.Edges),
		Viewport: g.Viewport,
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = cloneNode(n)
	}
	if out.Edges == nil {
		out.Edges = []graph.Edge{}
	}
	return out
}

func cloneNode(n graph.CanvasNode) graph.CanvasNode {
	n.Data.WidgetValues = maps.Clone(n.Data.WidgetValues)
	n.Data.WidgetControls = maps.Clone(n.Data.WidgetControls)
	return n
}

