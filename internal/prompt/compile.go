package prompt

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/toucan/internal/dag"
	"github.com/specialistvlad/toucan/internal/graph"
	"github.com/specialistvlad/toucan/internal/schema"
)

const (
	msgEmpty         = "Workflow has no nodes."
	msgNoOutputNodes = "Workflow has no output nodes; nothing will be saved."
)

// Compile turns nodes and edges into a backend request. Problems are collected
// rather than returned early, so one call reports every missing input.
//
// Edges are trusted: their types were checked when they were created. An edge
// whose source cannot be encoded is still reported, because the request would
// otherwise reference a node the backend does not know.
func Compile(nodes []graph.CanvasNode, edges []graph.Edge, schemas schema.Map) Result {
	c := &compiler{
		nodes:    nodes,
		schemas:  schemas,
		incoming: indexIncoming(edges),
		result:   Result{Request: make(Request, len(nodes))},
	}
	if len(nodes) == 0 {
		c.errorf(msgEmpty)
		return c.result
	}

	outputNodes := 0
	for _, node := range c.order(edges) {
		if c.compileNode(node) {
			outputNodes++
		}
	}
	if outputNodes == 0 && len(c.result.Request) > 0 {
		c.warnf(msgNoOutputNodes)
	}
	return c.result
}

type compiler struct {
	nodes    []graph.CanvasNode
	schemas  schema.Map
	incoming map[string]map[string]graph.Edge
	result   Result
}

// order returns the nodes sorted so that every node comes after the nodes
// feeding it, ties keeping the caller's order. A cycle is reported once and
// the caller's order is used instead.
func (c *compiler) order(edges []graph.Edge) []*graph.CanvasNode {
	g := dag.New()
	byID := make(map[string]*graph.CanvasNode, len(c.nodes))
	for i := range c.nodes {
		g.AddNode(c.nodes[i].ID)
		byID[c.nodes[i].ID] = &c.nodes[i]
	}
	for _, e := range edges {
		if g.Has(e.Source) && g.Has(e.Target) {
			_ = g.AddEdge(e.Source, e.Target)
		}
	}

	ids, err := g.TopologicalOrder()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			c.errorf("Workflow contains a cycle through node %s.", c.describeID(cycleErr.NodeID))
		}
		ids = make([]string, 0, len(c.nodes))
		for _, n := range c.nodes {
			ids = append(ids, n.ID)
		}
	}

	ordered := make([]*graph.CanvasNode, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, byID[id])
	}
	return ordered
}

// compileNode adds one node to the request and reports whether it is an
// output node.
func (c *compiler) compileNode(node *graph.CanvasNode) bool {
	s, ok := c.schemas.Lookup(node.Data.NodeType)
	if !ok {
		c.errorf("Node %s has unknown type %q.", describe(node, nil), node.Data.NodeType)
		return false
	}

	entry := Node{
		Inputs:    make(map[string]any, len(s.Inputs)),
		ClassType: s.Name,
		Meta:      &Meta{Title: title(node, s)},
	}
	wired := c.incoming[node.ID]

	for i := range s.Inputs {
		slot := &s.Inputs[i]
		if slot.Group == schema.GroupHidden {
			continue
		}

		if edge, ok := wired[slot.Name]; ok {
			if link, ok := c.link(edge); ok {
				entry.Inputs[slot.Name] = link
			} else {
				c.errorf("Node %s input %q is connected to a missing source.", describe(node, s), slot.Name)
			}
			continue
		}

		if spec := schema.WidgetSpecFor(slot); spec != nil {
			value, ok := node.Data.WidgetValues[slot.Name]
			if !ok || value == nil {
				value = spec.Default
			}
			entry.Inputs[slot.Name] = value
			continue
		}

		if slot.Group == schema.GroupRequired {
			c.errorf("Node %s is missing required input %q.", describe(node, s), slot.Name)
		} else {
			c.warnf("Node %s has no value for optional input %q.", describe(node, s), slot.Name)
		}
	}

	c.result.Request[node.ID] = entry
	return s.IsOutputNode
}

// link encodes an edge as a reference to its source output.
func (c *compiler) link(e graph.Edge) (Link, bool) {
	source, ok := graph.FindNode(c.nodes, e.Source)
	if !ok {
		return Link{}, false
	}
	s, ok := c.schemas.Lookup(source.Data.NodeType)
	if !ok {
		return Link{}, false
	}
	slotName, ok := graph.ParseOutputHandle(e.SourceHandle)
	if !ok {
		return Link{}, false
	}
	idx, _, ok := s.Output(slotName)
	if !ok {
		return Link{}, false
	}
	return Link{NodeID: source.ID, Output: idx}, true
}

// indexIncoming maps target node id and input slot to the edge feeding it.
// When several edges feed the same input the last one wins.
func indexIncoming(edges []graph.Edge) map[string]map[string]graph.Edge {
	incoming := make(map[string]map[string]graph.Edge)
	for _, e := range edges {
		slot, ok := graph.ParseInputHandle(e.TargetHandle)
		if !ok || e.Target == "" {
			continue
		}
		byInput, ok := incoming[e.Target]
		if !ok {
			byInput = make(map[string]graph.Edge)
			incoming[e.Target] = byInput
		}
		byInput[slot] = e
	}
	return incoming
}

func (c *compiler) describeID(id string) string {
	if node, ok := graph.FindNode(c.nodes, id); ok {
		s, _ := c.schemas.Lookup(node.Data.NodeType)
		return describe(node, s)
	}
	return fmt.Sprintf("(%s)", id)
}

func (c *compiler) errorf(format string, args ...any) {
	c.result.Errors = append(c.result.Errors, fmt.Sprintf(format, args...))
}

func (c *compiler) warnf(format string, args ...any) {
	c.result.Warnings = append(c.result.Warnings, fmt.Sprintf(format, args...))
}

func title(node *graph.CanvasNode, s *schema.NodeSchema) string {
	if node.Data.Label != "" {
		return node.Data.Label
	}
	if s != nil {
		return s.DisplayName
	}
	return node.ID
}

// describe renders a node as `"Title" (id)` for messages.
func describe(node *graph.CanvasNode, s *schema.NodeSchema) string {
	return fmt.Sprintf("%q (%s)", title(node, s), node.ID)
}
