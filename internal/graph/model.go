package graph

// NodeKind is the editor node type every workflow node is rendered with.
const NodeKind = "comfy"

// Position is the canvas coordinate of a node. The core never interprets it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the payload carried by every canvas node.
type NodeData struct {
	Label    string `json:"label"`
	NodeType string `json:"nodeType"`
	// WidgetValues holds constant input values keyed by input slot name.
	WidgetValues map[string]any `json:"widgetValues"`
	// WidgetControls holds per-slot control metadata such as seed
	// auto-increment. It is round-tripped unchanged.
	WidgetControls map[string]any `json:"widgetControlValues,omitempty"`
}

// CanvasNode is one node instance in a workflow.
type CanvasNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type,omitempty"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed connection from an output slot to an input slot.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// SameEndpoints reports whether two edges join the same slots.
func (e Edge) SameEndpoints(o Edge) bool {
	return e.Source == o.Source && e.SourceHandle == o.SourceHandle &&
		e.Target == o.Target && e.TargetHandle == o.TargetHandle
}

// Viewport is the canvas pan and zoom.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Graph is the full exported editor state.
type Graph struct {
	Nodes    []CanvasNode `json:"nodes"`
	Edges    []Edge       `json:"edges"`
	Viewport Viewport     `json:"viewport"`
}

// FindNode returns the node with the given id.
func FindNode(nodes []CanvasNode, id string) (*CanvasNode, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i], true
		}
	}
	return nil, false
}

// EdgeID builds the identifier the editor assigns to a new connection.
func EdgeID(e Edge) string {
	return "xy-edge__" + e.Source + e.SourceHandle + "-" + e.Target + e.TargetHandle
}
