package dag

import "sort"

// Ancestors returns the transitive closure of dependencies of id, ascending.
func (d *DAG) Ancestors(id string) ([]string, error) {
	ni, ok := d.lookup(id)
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return d.closure(ni, func(n node) []int { return n.in }, func(e edge) int { return e.from }), nil
}

// Descendants returns the transitive closure of dependents of id, ascending.
func (d *DAG) Descendants(id string) ([]string, error) {
	ni, ok := d.lookup(id)
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return d.closure(ni, func(n node) []int { return n.out }, func(e edge) int { return e.to }), nil
}

func (d *DAG) closure(start int, incident func(node) []int, next func(edge) int) []string {
	seen := map[int]bool{start: true}
	queue := []int{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ei := range incident(d.nodes[cur]) {
			e := d.edges[ei]
			if e.removed {
				continue
			}
			n := next(e)
			if !seen[n] {
				seen[n] = true
				out = append(out, d.nodes[n].id)
				queue = append(queue, n)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ReadyNodes returns the non-completed nodes whose blocking dependencies are
// all in the completed set, ascending. Preferred-order edges never gate
// readiness.
func (d *DAG) ReadyNodes(completed map[string]bool) []string {
	var out []string
	for _, n := range d.nodes {
		if n.removed || completed[n.id] {
			continue
		}
		if d.blockingSatisfied(n, completed) {
			out = append(out, n.id)
		}
	}
	sort.Strings(out)
	return out
}

// BlockedNodes returns the non-completed nodes with at least one unsatisfied
// blocking dependency, ascending. ReadyNodes and BlockedNodes partition the
// non-completed node set.
func (d *DAG) BlockedNodes(completed map[string]bool) []string {
	var out []string
	for _, n := range d.nodes {
		if n.removed || completed[n.id] {
			continue
		}
		if !d.blockingSatisfied(n, completed) {
			out = append(out, n.id)
		}
	}
	sort.Strings(out)
	return out
}

func (d *DAG) blockingSatisfied(n node, completed map[string]bool) bool {
	for _, ei := range n.in {
		e := d.edges[ei]
		if e.removed || e.kind != blockingKind {
			continue
		}
		if !completed[d.nodes[e.from].id] {
			return false
		}
	}
	return true
}

// IsConnected reports whether the graph is weakly connected. The empty graph
// counts as connected.
func (d *DAG) IsConnected() bool {
	return d.componentCount() <= 1
}

// ValidateConnected returns NotConnectedError when the graph has more than
// one weakly connected component.
func (d *DAG) ValidateConnected() error {
	if c := d.componentCount(); c > 1 {
		return &NotConnectedError{Components: c}
	}
	return nil
}

func (d *DAG) componentCount() int {
	seen := make(map[int]bool, d.nodeCount)
	components := 0
	for i, n := range d.nodes {
		if n.removed || seen[i] {
			continue
		}
		components++
		queue := []int{i}
		seen[i] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, ei := range append(d.nodes[cur].out, d.nodes[cur].in...) {
				e := d.edges[ei]
				if e.removed {
					continue
				}
				for _, n := range []int{e.from, e.to} {
					if !seen[n] {
						seen[n] = true
						queue = append(queue, n)
					}
				}
			}
		}
	}
	return components
}
