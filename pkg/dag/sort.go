package dag

import "sort"

// TopologicalSort returns a total order in which every dependency precedes
// its dependents. The order is deterministic: ties are broken by ascending
// bead id. A cycle (impossible by construction, checked defensively) is
// reported as CycleError carrying the implicated nodes.
func (d *DAG) TopologicalSort() ([]string, error) {
	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)
	color := make(map[int]int, d.nodeCount)
	order := make([]string, 0, d.nodeCount)
	var path []int // the gray chain, for cycle reporting

	var visit func(int) error
	visit = func(ni int) error {
		color[ni] = gray
		path = append(path, ni)
		next := d.sortedNeighbors(ni)
		// Descend into higher ids first: the postorder then lists lower ids
		// later, so the final reversed order breaks ties ascending.
		for i := len(next) - 1; i >= 0; i-- {
			ci := next[i]
			switch color[ci] {
			case white:
				if err := visit(ci); err != nil {
					return err
				}
			case gray:
				return &CycleError{Nodes: d.grayCycle(path, ci)}
			}
		}
		path = path[:len(path)-1]
		color[ni] = black
		order = append(order, d.nodes[ni].id)
		return nil
	}

	starts := d.liveIndicesByID()
	for i := len(starts) - 1; i >= 0; i-- {
		if ni := starts[i]; color[ni] == white {
			if err := visit(ni); err != nil {
				return nil, err
			}
		}
	}
	// Postorder lists dependents before dependencies; reverse it.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// grayCycle returns the ids on the active DFS path from the node that closed
// the loop through the current node, sorted ascending.
func (d *DAG) grayCycle(path []int, entry int) []string {
	start := 0
	for i, ni := range path {
		if ni == entry {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start)
	for _, ni := range path[start:] {
		cycle = append(cycle, d.nodes[ni].id)
	}
	sort.Strings(cycle)
	return cycle
}

// KahnSort is an independent second ordering via Kahn's algorithm. It must
// agree with TopologicalSort on the partial order even where the total
// orders differ.
func (d *DAG) KahnSort() ([]string, error) {
	inDegree := make(map[int]int, d.nodeCount)
	for _, ni := range d.liveIndicesByID() {
		inDegree[ni] = 0
	}
	for _, e := range d.edges {
		if !e.removed {
			inDegree[e.to]++
		}
	}

	var frontier []int
	for ni, deg := range inDegree {
		if deg == 0 {
			frontier = append(frontier, ni)
		}
	}
	d.sortByID(frontier)

	order := make([]string, 0, d.nodeCount)
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		order = append(order, d.nodes[cur].id)

		var released []int
		for _, ei := range d.nodes[cur].out {
			e := d.edges[ei]
			if e.removed {
				continue
			}
			inDegree[e.to]--
			if inDegree[e.to] == 0 {
				released = append(released, e.to)
			}
		}
		d.sortByID(released)
		frontier = append(frontier, released...)
		d.sortByID(frontier)
	}

	if len(order) != d.nodeCount {
		remaining := make([]string, 0)
		for ni, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, d.nodes[ni].id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Nodes: remaining}
	}
	return order, nil
}

// sortedNeighbors returns the live out-neighbors of ni ascending by id.
func (d *DAG) sortedNeighbors(ni int) []int {
	var next []int
	for _, ei := range d.nodes[ni].out {
		if e := d.edges[ei]; !e.removed {
			next = append(next, e.to)
		}
	}
	d.sortByID(next)
	return next
}

// liveIndicesByID returns all live node indices ascending by id.
func (d *DAG) liveIndicesByID() []int {
	out := make([]int, 0, d.nodeCount)
	for i, n := range d.nodes {
		if !n.removed {
			out = append(out, i)
		}
	}
	d.sortByID(out)
	return out
}

func (d *DAG) sortByID(indices []int) {
	sort.Slice(indices, func(i, j int) bool {
		return d.nodes[indices[i]].id < d.nodes[indices[j]].id
	})
}
