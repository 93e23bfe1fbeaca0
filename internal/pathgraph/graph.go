package pathgraph

import (
	"fmt"
	"slices"
)

// Graph holds the nodes and prerequisite edges of one learning path.
//
// Nodes live in an arena and are addressed by slot; the index maps stable
// node IDs to slots. Adjacency is kept in both directions so that reroutes
// and reachability checks never scan the full edge set.
//
// Every mutation checks reachability before it commits, so a Graph that was
// only ever mutated through its methods is always acyclic. A Graph is not
// safe for concurrent mutation.
type Graph struct {
	pathID string
	nodes  []Node
	index  map[string]int
	out    [][]int
	in     [][]int
}

// New returns an empty graph for the given path.
func New(pathID string) *Graph {
	return &Graph{
		pathID: pathID,
		index:  make(map[string]int),
	}
}

// Build constructs a graph from persisted nodes and edges. It fails if an
// edge references an unknown node, a node ID repeats, or the edges contain
// a cycle.
func Build(pathID string, nodes []Node, edges []Edge) (*Graph, error) {
	g := New(pathID)
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// PathID returns the path this graph belongs to.
func (g *Graph) PathID() string { return g.pathID }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	return slices.Clone(g.nodes)
}

// Edges returns all edges ordered by source slot, then target slot.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for from, succ := range g.out {
		for _, to := range succ {
			edges = append(edges, Edge{From: g.nodes[from].ID, To: g.nodes[to].ID})
		}
	}
	return edges
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, succ := range g.out {
		n += len(succ)
	}
	return n
}

// HasEdge reports whether the edge from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	fi, ok := g.index[from]
	if !ok {
		return false
	}
	ti, ok := g.index[to]
	if !ok {
		return false
	}
	return slices.Contains(g.out[fi], ti)
}

// Predecessors returns the direct prerequisites of id.
func (g *Graph) Predecessors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.in[i])
}

// Successors returns the nodes that directly depend on id.
func (g *Graph) Successors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.out[i])
}

// Roots returns nodes without prerequisites, in insertion order.
func (g *Graph) Roots() []Node {
	var roots []Node
	for i, n := range g.nodes {
		if len(g.in[i]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// AddNode appends a node. No edges are implied.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("add node: empty node ID")
	}
	if n.PathID == "" {
		n.PathID = g.pathID
	}
	if n.PathID != g.pathID {
		return fmt.Errorf("add node %q: belongs to path %q, not %q", n.ID, n.PathID, g.pathID)
	}
	if _, ok := g.index[n.ID]; ok {
		return fmt.Errorf("add node %q: %w", n.ID, ErrDuplicateNode)
	}
	if !n.Type.Valid() {
		n.Type = TypeConcept
	}
	n.Tags = slices.Clone(n.Tags)

	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return nil
}

// AddEdge inserts the prerequisite edge from -> to. The reachability check
// runs before insertion: if to already reaches from, the edge is rejected
// with a *CycleError and the graph is left unchanged. Adding an edge that
// already exists is a no-op.
func (g *Graph) AddEdge(from, to string) error {
	fi, err := g.slot(from)
	if err != nil {
		return err
	}
	ti, err := g.slot(to)
	if err != nil {
		return err
	}
	if slices.Contains(g.out[fi], ti) {
		return nil
	}
	if fi == ti || g.reachable(ti, fi) {
		return &CycleError{From: from, To: to}
	}
	g.link(fi, ti)
	return nil
}

// Reachable reports whether a directed path leads from one node to another.
// A node reaches itself.
func (g *Graph) Reachable(from, to string) bool {
	fi, ok := g.index[from]
	if !ok {
		return false
	}
	ti, ok := g.index[to]
	if !ok {
		return false
	}
	return g.reachable(fi, ti)
}

// RerouteIncoming repoints every edge whose destination is target so that
// it ends at newPred instead. Edges that would duplicate an existing edge
// into newPred collapse into it. If target has no incoming edges this is a
// no-op. The whole reroute is rejected, with no change, if any rerouted edge
// would close a cycle.
//
// On its own this leaves target without prerequisites; callers splicing a
// node in front of target should use InsertBefore, which applies the reroute
// and the newPred -> target edge as one unit.
func (g *Graph) RerouteIncoming(target, newPred string) error {
	ti, err := g.slot(target)
	if err != nil {
		return err
	}
	pi, err := g.slot(newPred)
	if err != nil {
		return err
	}
	preds := slices.Clone(g.in[ti])
	for _, p := range preds {
		if p == pi || g.reachable(pi, p) {
			return &CycleError{From: g.nodes[p].ID, To: newPred}
		}
	}
	for _, p := range preds {
		g.unlink(p, ti)
		if !slices.Contains(g.out[p], pi) {
			g.link(p, pi)
		}
	}
	return nil
}

// InsertBefore splices n in front of target: n is added, every edge into
// target is rerouted into n, and n -> target is added, leaving n as the sole
// prerequisite of target. The operation is atomic: it is computed on a copy
// and only committed if every step succeeds and the result is acyclic, so
// the graph is never observable with target transiently unlinked.
func (g *Graph) InsertBefore(target string, n Node) error {
	if !g.Has(target) {
		return &UnknownNodeError{PathID: g.pathID, ID: target}
	}
	next := g.Clone()
	if err := next.AddNode(n); err != nil {
		return err
	}
	if err := next.RerouteIncoming(target, n.ID); err != nil {
		return err
	}
	if err := next.AddEdge(n.ID, target); err != nil {
		return err
	}
	if err := next.CheckAcyclic(); err != nil {
		return err
	}
	*g = *next
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		pathID: g.pathID,
		nodes:  make([]Node, len(g.nodes)),
		index:  make(map[string]int, len(g.index)),
		out:    make([][]int, len(g.out)),
		in:     make([][]int, len(g.in)),
	}
	for i, n := range g.nodes {
		n.Tags = slices.Clone(n.Tags)
		c.nodes[i] = n
	}
	for id, i := range g.index {
		c.index[id] = i
	}
	for i := range g.out {
		c.out[i] = slices.Clone(g.out[i])
		c.in[i] = slices.Clone(g.in[i])
	}
	return c
}

func (g *Graph) slot(id string) (int, error) {
	i, ok := g.index[id]
	if !ok {
		return 0, &UnknownNodeError{PathID: g.pathID, ID: id}
	}
	return i, nil
}

func (g *Graph) link(from, to int) {
	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
}

func (g *Graph) unlink(from, to int) {
	g.out[from] = slices.DeleteFunc(g.out[from], func(i int) bool { return i == to })
	g.in[to] = slices.DeleteFunc(g.in[to], func(i int) bool { return i == from })
}

// reachable runs an iterative DFS over outgoing edges.
func (g *Graph) reachable(from, to int) bool {
	if from == to {
		return true
	}
	seen := make([]bool, len(g.nodes))
	stack := []int{from}
	seen[from] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.out[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func (g *Graph) ids(slots []int) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = g.nodes[s].ID
	}
	return out
}
