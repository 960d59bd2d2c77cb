// Package graph holds the editor's workflow model and the connection
// validator.
//
// A workflow is a list of CanvasNode values and a list of Edge values. An edge
// joins an output slot of one node to an input slot of another; the slot names
// travel inside handle identifiers ("out-<slot>" and "in-<slot>") so that the
// model stays compatible with the JSON the editor exports.
//
// The validator decides whether a candidate edge may be added. It is a pure
// function of its arguments: the node list, the current edge list and the
// schema catalog are always passed in explicitly, and nothing is mutated.
// Every check is linear in the size of the graph, so it is cheap enough to run
// while a connection is being dragged.
//
// Rules, in evaluation order:
//
//  1. Both endpoints resolve to existing nodes, known schemas and existing
//     slots.
//  2. The target slot's value type equals the source output type exactly.
//  3. The edge does not join a node to itself.
//  4. The edge does not close a cycle.
//  5. The target input does not already have an incoming edge, unless the
//     caller asked for replace semantics.
package graph
