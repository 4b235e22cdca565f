package dag

import "sort"

// sccState carries Tarjan bookkeeping across the whole run. The visited map
// lives here, outside any single root's traversal: a node first reached from
// one root must be skipped when a later root reaches it again.
type sccState struct {
	d        *DAG
	index    int
	indices  map[int]int
	lowlink  map[int]int
	onStack  map[int]bool
	stack    []int
	sccs     [][]string
}

// FindCycles returns the strongly connected components with more than one
// member (or a self-loop), each sorted ascending. An acyclic graph yields an
// empty result. Every node is visited exactly once across the whole run even
// when multiple unconnected roots reach a shared descendant.
func (d *DAG) FindCycles() [][]string {
	s := &sccState{
		d:       d,
		indices: make(map[int]int, d.nodeCount),
		lowlink: make(map[int]int, d.nodeCount),
		onStack: make(map[int]bool, d.nodeCount),
	}
	// The driver loop owns the visited check: indices doubles as the
	// visited set, shared across all roots.
	for _, ni := range d.liveIndicesByID() {
		if _, visited := s.indices[ni]; !visited {
			s.strongConnect(ni)
		}
	}
	sort.Slice(s.sccs, func(i, j int) bool { return s.sccs[i][0] < s.sccs[j][0] })
	return s.sccs
}

// HasCycle reports whether any directed cycle exists.
func (d *DAG) HasCycle() bool {
	return len(d.FindCycles()) > 0
}

// ValidateNoSelfLoops scans for edges connecting a node to itself.
func (d *DAG) ValidateNoSelfLoops() error {
	for _, e := range d.edges {
		if !e.removed && e.from == e.to {
			return &SelfLoopError{ID: d.nodes[e.from].id}
		}
	}
	return nil
}

func (s *sccState) strongConnect(root int) {
	type frame struct {
		node int
		next int // cursor into sortedNeighbors(node)
	}
	neighbors := map[int][]int{}
	push := func(ni int) frame {
		s.indices[ni] = s.index
		s.lowlink[ni] = s.index
		s.index++
		s.stack = append(s.stack, ni)
		s.onStack[ni] = true
		neighbors[ni] = s.d.sortedNeighbors(ni)
		return frame{node: ni}
	}

	frames := []frame{push(root)}
	for len(frames) > 0 {
		f := &frames[len(frames)-1]
		if f.next < len(neighbors[f.node]) {
			child := neighbors[f.node][f.next]
			f.next++
			if _, visited := s.indices[child]; !visited {
				frames = append(frames, push(child))
			} else if s.onStack[child] {
				if s.indices[child] < s.lowlink[f.node] {
					s.lowlink[f.node] = s.indices[child]
				}
			}
			continue
		}

		// All children explored: maybe pop a component, then propagate
		// the lowlink to the parent frame.
		if s.lowlink[f.node] == s.indices[f.node] {
			var comp []string
			for {
				top := s.stack[len(s.stack)-1]
				s.stack = s.stack[:len(s.stack)-1]
				s.onStack[top] = false
				comp = append(comp, s.d.nodes[top].id)
				if top == f.node {
					break
				}
			}
			if len(comp) > 1 || s.selfLoop(f.node) {
				sort.Strings(comp)
				s.sccs = append(s.sccs, comp)
			}
		}
		done := *f
		frames = frames[:len(frames)-1]
		if len(frames) > 0 {
			parent := &frames[len(frames)-1]
			if s.lowlink[done.node] < s.lowlink[parent.node] {
				s.lowlink[parent.node] = s.lowlink[done.node]
			}
		}
	}
}

func (s *sccState) selfLoop(ni int) bool {
	for _, ei := range s.d.nodes[ni].out {
		if e := s.d.edges[ei]; !e.removed && e.to == ni {
			return true
		}
	}
	return false
}
