package dag

import "sync"

// Graph is a collection of nodes and the directed edges between them.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
}

// node is a single vertex. It is un-exported so callers work with string IDs
// only.
type node struct {
	id string
	// index is the insertion position, used to break ties deterministically.
	index int
	// deps holds the predecessors of this node (edge sources).
	deps map[string]*node
	// dependents holds the successors of this node (edge targets).
	dependents map[string]*node
}

// CycleError reports a cycle found while ordering or checking the graph.
type CycleError struct {
	NodeID string
}

func (e *CycleError) Error() string {
	return "cycle detected involving node '" + e.NodeID + "'"
}
