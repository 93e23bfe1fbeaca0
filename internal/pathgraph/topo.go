package pathgraph

import (
	"fmt"
	"slices"
)

// TopologicalOrder returns the nodes in prerequisite order using Kahn's
// algorithm. Ties are broken by insertion order so the result is stable.
func (g *Graph) TopologicalOrder() ([]Node, error) {
	inDegree := make([]int, len(g.nodes))
	for i := range g.nodes {
		inDegree[i] = len(g.in[i])
	}

	queue := make([]int, 0, len(g.nodes))
	for i, d := range inDegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]Node, 0, len(g.nodes))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, g.nodes[cur])

		// Successors are visited in slot order so equal-depth nodes keep
		// their insertion order.
		next := minSlotFirst(g.out[cur])
		for _, s := range next {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for i, d := range inDegree {
			if d > 0 {
				// Any node left with pending prerequisites sits on or behind
				// a cycle; name one of its incoming edges.
				from := g.nodes[g.in[i][0]].ID
				return nil, fmt.Errorf("topological order: %w", &CycleError{From: from, To: g.nodes[i].ID})
			}
		}
	}
	return order, nil
}

// CheckAcyclic verifies that the graph contains no directed cycle.
func (g *Graph) CheckAcyclic() error {
	_, err := g.TopologicalOrder()
	return err
}

// IsAcyclic reports whether the graph contains no directed cycle.
func (g *Graph) IsAcyclic() bool {
	return g.CheckAcyclic() == nil
}

func minSlotFirst(slots []int) []int {
	out := slices.Clone(slots)
	slices.Sort(out)
	return out
}
