package models

import "github.com/mohae/deepcopy"

// ExecutionGraph is an engine execution graph: node identifier to node document.
// Nodes are kept schema-less so classes the engine adds later survive a round trip.
type ExecutionGraph map[string]any

// Clone returns a deep copy of the graph. The receiver is never modified.
func (g ExecutionGraph) Clone() ExecutionGraph {
	if g == nil {
		return nil
	}

	cloned, ok := deepcopy.Copy(map[string]any(g)).(map[string]any)
	if !ok {
		return ExecutionGraph{}
	}

	return ExecutionGraph(cloned)
}

// Node returns the node document stored under id.
func (g ExecutionGraph) Node(id string) (any, bool) {
	node, ok := g[id]

	return node, ok
}
