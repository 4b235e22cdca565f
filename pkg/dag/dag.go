// Package dag implements the dependency graph over beads. Nodes live in a
// dense arena indexed by position; edges are index pairs. The graph is kept
// acyclic and self-loop-free at mutation time.
package dag

import (
	"sort"

	"github.com/lprior-repo/oya-sub002/pkg/models"
)

const blockingKind = models.BlockingDependency

type node struct {
	id      string
	removed bool
	out     []int // edge indices where this node is the source
	in      []int // edge indices where this node is the target
}

type edge struct {
	from, to int
	kind     models.DependencyKind
	removed  bool
}

// DAG is a directed acyclic dependency graph. It is not safe for concurrent
// use; the owning actor serializes access.
type DAG struct {
	nodes []node
	edges []edge
	index map[string]int

	nodeCount int
	edgeCount int
}

// New returns an empty DAG.
func New() *DAG {
	return &DAG{index: make(map[string]int)}
}

func (d *DAG) lookup(id string) (int, bool) {
	i, ok := d.index[id]
	if !ok || d.nodes[i].removed {
		return 0, false
	}
	return i, true
}

// AddNode inserts a bead id as a graph node.
func (d *DAG) AddNode(id string) error {
	if _, ok := d.lookup(id); ok {
		return &NodeAlreadyExistsError{ID: id}
	}
	d.index[id] = len(d.nodes)
	d.nodes = append(d.nodes, node{id: id})
	d.nodeCount++
	return nil
}

// HasNode reports whether id is a live node.
func (d *DAG) HasNode(id string) bool {
	_, ok := d.lookup(id)
	return ok
}

// AddEdge inserts a directed dependency edge from -> to: "to" depends on
// "from". The insertion is rejected if it would introduce a self-loop, a
// duplicate edge, or a cycle.
func (d *DAG) AddEdge(from, to string, kind models.DependencyKind) error {
	if from == to {
		return &SelfLoopError{ID: from}
	}
	fi, ok := d.lookup(from)
	if !ok {
		return &NodeNotFoundError{ID: from}
	}
	ti, ok := d.lookup(to)
	if !ok {
		return &NodeNotFoundError{ID: to}
	}
	for _, ei := range d.nodes[fi].out {
		e := d.edges[ei]
		if !e.removed && e.to == ti {
			return &EdgeAlreadyExistsError{From: from, To: to}
		}
	}
	if path := d.pathBetween(ti, fi); path != nil {
		// Adding from->to would close the loop to -> ... -> from -> to.
		cycle := make([]string, 0, len(path))
		for _, ni := range path {
			cycle = append(cycle, d.nodes[ni].id)
		}
		sort.Strings(cycle)
		return &CycleError{Nodes: cycle}
	}
	ei := len(d.edges)
	d.edges = append(d.edges, edge{from: fi, to: ti, kind: kind})
	d.nodes[fi].out = append(d.nodes[fi].out, ei)
	d.nodes[ti].in = append(d.nodes[ti].in, ei)
	d.edgeCount++
	return nil
}

// pathBetween returns the node indices on some directed path src -> dst, or
// nil when dst is unreachable from src.
func (d *DAG) pathBetween(src, dst int) []int {
	parent := make(map[int]int, d.nodeCount)
	parent[src] = -1
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dst {
			var path []int
			for n := dst; n != -1; n = parent[n] {
				path = append(path, n)
			}
			return path
		}
		for _, ei := range d.nodes[cur].out {
			e := d.edges[ei]
			if e.removed {
				continue
			}
			if _, seen := parent[e.to]; !seen {
				parent[e.to] = cur
				queue = append(queue, e.to)
			}
		}
	}
	return nil
}

// RemoveEdge deletes the edge from -> to.
func (d *DAG) RemoveEdge(from, to string) error {
	fi, ok := d.lookup(from)
	if !ok {
		return &NodeNotFoundError{ID: from}
	}
	ti, ok := d.lookup(to)
	if !ok {
		return &NodeNotFoundError{ID: to}
	}
	for _, ei := range d.nodes[fi].out {
		if e := &d.edges[ei]; !e.removed && e.to == ti {
			e.removed = true
			d.edgeCount--
			return nil
		}
	}
	return &EdgeNotFoundError{From: from, To: to}
}

// RemoveNode deletes a node. Removal is refused when live dependents remain
// unless force is set, in which case all incident edges go with it.
func (d *DAG) RemoveNode(id string, force bool) error {
	ni, ok := d.lookup(id)
	if !ok {
		return &NodeNotFoundError{ID: id}
	}
	deps := d.dependentsOf(ni)
	if len(deps) > 0 && !force {
		return &HasDependentsError{ID: id, Dependents: deps}
	}
	for _, ei := range d.nodes[ni].out {
		if !d.edges[ei].removed {
			d.edges[ei].removed = true
			d.edgeCount--
		}
	}
	for _, ei := range d.nodes[ni].in {
		if !d.edges[ei].removed {
			d.edges[ei].removed = true
			d.edgeCount--
		}
	}
	d.nodes[ni].removed = true
	d.nodeCount--
	return nil
}

// Dependencies returns the ids this bead directly depends on.
func (d *DAG) Dependencies(id string) ([]string, error) {
	ni, ok := d.lookup(id)
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	var out []string
	for _, ei := range d.nodes[ni].in {
		if e := d.edges[ei]; !e.removed {
			out = append(out, d.nodes[e.from].id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Dependents returns the ids that directly depend on this bead.
func (d *DAG) Dependents(id string) ([]string, error) {
	ni, ok := d.lookup(id)
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return d.dependentsOf(ni), nil
}

func (d *DAG) dependentsOf(ni int) []string {
	var out []string
	for _, ei := range d.nodes[ni].out {
		if e := d.edges[ei]; !e.removed {
			out = append(out, d.nodes[e.to].id)
		}
	}
	sort.Strings(out)
	return out
}

// Nodes returns all live node ids in ascending order.
func (d *DAG) Nodes() []string {
	out := make([]string, 0, d.nodeCount)
	for _, n := range d.nodes {
		if !n.removed {
			out = append(out, n.id)
		}
	}
	sort.Strings(out)
	return out
}

// Edges returns all live edges.
func (d *DAG) Edges() []models.Edge {
	out := make([]models.Edge, 0, d.edgeCount)
	for _, e := range d.edges {
		if !e.removed {
			out = append(out, models.Edge{
				From: d.nodes[e.from].id,
				To:   d.nodes[e.to].id,
				Kind: e.kind,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// NodeCount returns the number of live nodes.
func (d *DAG) NodeCount() int { return d.nodeCount }

// EdgeCount returns the number of live edges.
func (d *DAG) EdgeCount() int { return d.edgeCount }

// Roots returns nodes with no incoming edges, ascending.
func (d *DAG) Roots() []string {
	var out []string
	for _, n := range d.nodes {
		if n.removed {
			continue
		}
		if !d.hasLiveIn(n) {
			out = append(out, n.id)
		}
	}
	sort.Strings(out)
	return out
}

// Leaves returns nodes with no outgoing edges, ascending.
func (d *DAG) Leaves() []string {
	var out []string
	for _, n := range d.nodes {
		if n.removed {
			continue
		}
		if !d.hasLiveOut(n) {
			out = append(out, n.id)
		}
	}
	sort.Strings(out)
	return out
}

func (d *DAG) hasLiveIn(n node) bool {
	for _, ei := range n.in {
		if !d.edges[ei].removed {
			return true
		}
	}
	return false
}

func (d *DAG) hasLiveOut(n node) bool {
	for _, ei := range n.out {
		if !d.edges[ei].removed {
			return true
		}
	}
	return false
}

// Subgraph returns a new DAG restricted to the given node ids and the edges
// among them. Unknown ids are reported as NodeNotFoundError.
func (d *DAG) Subgraph(ids []string) (*DAG, error) {
	keep := make(map[string]bool, len(ids))
	sub := New()
	for _, id := range ids {
		if _, ok := d.lookup(id); !ok {
			return nil, &NodeNotFoundError{ID: id}
		}
		if keep[id] {
			continue
		}
		keep[id] = true
		if err := sub.AddNode(id); err != nil {
			return nil, err
		}
	}
	for _, e := range d.Edges() {
		if keep[e.From] && keep[e.To] {
			if err := sub.AddEdge(e.From, e.To, e.Kind); err != nil {
				return nil, err
			}
		}
	}
	return sub, nil
}

// InducedSubgraph returns the subgraph of id plus everything reachable from
// it.
func (d *DAG) InducedSubgraph(id string) (*DAG, error) {
	desc, err := d.Descendants(id)
	if err != nil {
		return nil, err
	}
	return d.Subgraph(append(desc, id))
}
