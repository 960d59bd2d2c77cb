package graph

import (
	"github.com/specialistvlad/toucan/internal/dag"
	"github.com/specialistvlad/toucan/internal/schema"
)

// Rejection names the rule a candidate edge failed. The zero value means the
// edge is acceptable.
type Rejection string

const (
	Accepted         Rejection = ""
	RejectUnresolved Rejection = "unresolved endpoint"
	RejectType       Rejection = "type mismatch"
	RejectSelfLoop   Rejection = "self loop"
	RejectCycle      Rejection = "creates cycle"
	RejectFanIn      Rejection = "input already connected"
)

// ResolvedConnection is a candidate edge with both endpoints looked up.
type ResolvedConnection struct {
	SourceNode   *CanvasNode
	TargetNode   *CanvasNode
	SourceSchema *schema.NodeSchema
	TargetSchema *schema.NodeSchema
	SourceSlot   *schema.OutputSlot
	// SourceIndex is the position of SourceSlot among the source outputs.
	SourceIndex int
	TargetSlot  *schema.InputSlot
}

// ResolveConnectionSlots looks up the nodes, schemas and slots a candidate
// edge refers to. It fails if any of them is missing.
func ResolveConnectionSlots(candidate Edge, nodes []CanvasNode, schemas schema.Map) (*ResolvedConnection, bool) {
	if candidate.Source == "" || candidate.Target == "" {
		return nil, false
	}
	sourceSlotName, ok := ParseOutputHandle(candidate.SourceHandle)
	if !ok {
		return nil, false
	}
	targetSlotName, ok := ParseInputHandle(candidate.TargetHandle)
	if !ok {
		return nil, false
	}

	sourceNode, ok := FindNode(nodes, candidate.Source)
	if !ok {
		return nil, false
	}
	targetNode, ok := FindNode(nodes, candidate.Target)
	if !ok {
		return nil, false
	}

	sourceSchema, ok := schemas.Lookup(sourceNode.Data.NodeType)
	if !ok {
		return nil, false
	}
	targetSchema, ok := schemas.Lookup(targetNode.Data.NodeType)
	if !ok {
		return nil, false
	}

	sourceIndex, sourceSlot, ok := sourceSchema.Output(sourceSlotName)
	if !ok {
		return nil, false
	}
	targetSlot, ok := targetSchema.Input(targetSlotName)
	if !ok {
		return nil, false
	}

	return &ResolvedConnection{
		SourceNode:   sourceNode,
		TargetNode:   targetNode,
		SourceSchema: sourceSchema,
		TargetSchema: targetSchema,
		SourceSlot:   sourceSlot,
		SourceIndex:  sourceIndex,
		TargetSlot:   targetSlot,
	}, true
}

// IsTypeCompatible reports whether the source output type equals the target
// input value type. A target without a value type accepts nothing.
func IsTypeCompatible(r *ResolvedConnection) bool {
	if r == nil || r.TargetSlot.ValueType == "" {
		return false
	}
	return r.SourceSlot.Type == r.TargetSlot.ValueType
}

// CreatesCycle reports whether adding candidate to edges would close a
// directed loop. Edges with a missing endpoint are ignored; a candidate with a
// missing endpoint or joining a node to itself always counts as a cycle.
func CreatesCycle(candidate Edge, edges []Edge) bool {
	if candidate.Source == "" || candidate.Target == "" {
		return true
	}
	if candidate.Source == candidate.Target {
		return true
	}
	return buildDAG(edges).Reachable(candidate.Target, candidate.Source)
}

// buildDAG turns an edge list into a dag.Graph. Self-referential edges carry
// no reachability information between distinct nodes and are skipped.
func buildDAG(edges []Edge) *dag.Graph {
	g := dag.New()
	for _, e := range edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		g.AddNode(e.Source)
		g.AddNode(e.Target)
		_ = g.AddEdge(e.Source, e.Target)
	}
	return g
}

// Validator checks candidate edges against a schema catalog.
type Validator struct {
	Schemas schema.Map
	// AllowReplace skips the fan-in rule. Callers that set it must remove the
	// edge already feeding the target input when they add the candidate.
	AllowReplace bool
}

// Check returns the first rule the candidate violates, or Accepted.
func (v Validator) Check(candidate Edge, nodes []CanvasNode, edges []Edge) Rejection {
	resolved, ok := ResolveConnectionSlots(candidate, nodes, v.Schemas)
	if !ok {
		return RejectUnresolved
	}
	if !IsTypeCompatible(resolved) {
		return RejectType
	}
	if candidate.Source == candidate.Target {
		return RejectSelfLoop
	}
	if CreatesCycle(candidate, edges) {
		return RejectCycle
	}
	if !v.AllowReplace && hasIncoming(candidate, edges) {
		return RejectFanIn
	}
	return Accepted
}

// hasIncoming reports whether another edge already feeds the candidate's
// target input. An edge with identical endpoints is the candidate itself and
// does not count.
func hasIncoming(candidate Edge, edges []Edge) bool {
	for _, e := range edges {
		if e.Target == candidate.Target && e.TargetHandle == candidate.TargetHandle && !e.SameEndpoints(candidate) {
			return true
		}
	}
	return false
}

// IsConnectionValid reports whether candidate may be added to the graph. Every
// failure yields false; it never panics.
func IsConnectionValid(candidate Edge, nodes []CanvasNode, edges []Edge, schemas schema.Map) bool {
	return Validator{Schemas: schemas}.Check(candidate, nodes, edges) == Accepted
}

// EdgeIssue is an existing edge that would not pass validation.
type EdgeIssue struct {
	Edge   Edge
	Reason Rejection
}

// ValidateEdges re-checks every edge of a loaded workflow against the others.
// Edges created interactively are validated one by one; workflows read from
// disk are not, so this is run before compiling them.
func ValidateEdges(nodes []CanvasNode, edges []Edge, schemas schema.Map) []EdgeIssue {
	v := Validator{Schemas: schemas}
	var issues []EdgeIssue
	others := make([]Edge, 0, len(edges))
	for i, e := range edges {
		others = append(others[:0], edges[:i]...)
		others = append(others, edges[i+1:]...)
		if reason := v.Check(e, nodes, others); reason != Accepted {
			issues = append(issues, EdgeIssue{Edge: e, Reason: reason})
		}
	}
	return issues
}
