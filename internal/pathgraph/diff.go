package pathgraph

// Delta describes how a graph changed between two snapshots of the same path.
// It is what the store persists after an in-memory mutation.
type Delta struct {
	AddedNodes   []Node
	AddedEdges   []Edge
	RemovedEdges []Edge
}

// Empty reports whether the delta carries no changes.
func (d Delta) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// Diff computes the changes that turn before into after. Node removal is not
// tracked since the graph never removes nodes.
func Diff(before, after *Graph) Delta {
	var d Delta
	for _, n := range after.nodes {
		if !before.Has(n.ID) {
			d.AddedNodes = append(d.AddedNodes, n)
		}
	}
	for _, e := range after.Edges() {
		if !before.HasEdge(e.From, e.To) {
			d.AddedEdges = append(d.AddedEdges, e)
		}
	}
	for _, e := range before.Edges() {
		if !after.HasEdge(e.From, e.To) {
			d.RemovedEdges = append(d.RemovedEdges, e)
		}
	}
	return d
}
