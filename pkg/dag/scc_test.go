package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addEdgeUnchecked wires an edge bypassing cycle prevention so tests can
// build the cyclic graphs FindCycles must detect.
func (d *DAG) addEdgeUnchecked(from, to string) {
	fi := d.index[from]
	ti := d.index[to]
	ei := len(d.edges)
	d.edges = append(d.edges, edge{from: fi, to: ti, kind: blockingKind})
	d.nodes[fi].out = append(d.nodes[fi].out, ei)
	d.nodes[ti].in = append(d.nodes[ti].in, ei)
	d.edgeCount++
}

func newRaw(t *testing.T, ids ...string) *DAG {
	t.Helper()
	g := New()
	for _, id := range ids {
		require.NoError(t, g.AddNode(id))
	}
	return g
}

func TestFindCycles(t *testing.T) {
	t.Run("AcyclicIsEmpty", func(t *testing.T) {
		g := newRaw(t, "a", "b", "c")
		g.addEdgeUnchecked("a", "b")
		g.addEdgeUnchecked("b", "c")
		assert.Empty(t, g.FindCycles())
		assert.False(t, g.HasCycle())
	})

	t.Run("SimpleCycle", func(t *testing.T) {
		g := newRaw(t, "a", "b", "c")
		g.addEdgeUnchecked("a", "b")
		g.addEdgeUnchecked("b", "c")
		g.addEdgeUnchecked("c", "a")
		assert.Equal(t, [][]string{{"a", "b", "c"}}, g.FindCycles())
		assert.True(t, g.HasCycle())
	})

	t.Run("SelfLoopIsACycle", func(t *testing.T) {
		g := newRaw(t, "a", "b")
		g.addEdgeUnchecked("a", "a")
		assert.Equal(t, [][]string{{"a"}}, g.FindCycles())

		err := g.ValidateNoSelfLoops()
		var selfLoop *SelfLoopError
		assert.ErrorAs(t, err, &selfLoop)
		assert.Equal(t, "a", selfLoop.ID)
	})

	t.Run("MultipleComponents", func(t *testing.T) {
		g := newRaw(t, "a", "b", "x", "y", "z", "solo")
		g.addEdgeUnchecked("a", "b")
		g.addEdgeUnchecked("b", "a")
		g.addEdgeUnchecked("x", "y")
		g.addEdgeUnchecked("y", "z")
		g.addEdgeUnchecked("z", "x")
		assert.Equal(t, [][]string{{"a", "b"}, {"x", "y", "z"}}, g.FindCycles())
	})

	// Two independent roots both reach the same cyclic component. The
	// component must be reported exactly once, not once per root.
	t.Run("SharedDescendantReportedOnce", func(t *testing.T) {
		g := newRaw(t, "r1", "r2", "x", "y")
		g.addEdgeUnchecked("r1", "x")
		g.addEdgeUnchecked("r2", "x")
		g.addEdgeUnchecked("x", "y")
		g.addEdgeUnchecked("y", "x")
		assert.Equal(t, [][]string{{"x", "y"}}, g.FindCycles())
	})

	t.Run("NestedReachability", func(t *testing.T) {
		// A cycle reachable only through a long acyclic prefix.
		g := newRaw(t, "a", "b", "c", "d", "e")
		g.addEdgeUnchecked("a", "b")
		g.addEdgeUnchecked("b", "c")
		g.addEdgeUnchecked("c", "d")
		g.addEdgeUnchecked("d", "e")
		g.addEdgeUnchecked("e", "c")
		assert.Equal(t, [][]string{{"c", "d", "e"}}, g.FindCycles())
	})
}

func TestValidateNoSelfLoops_Clean(t *testing.T) {
	g := newRaw(t, "a", "b")
	g.addEdgeUnchecked("a", "b")
	assert.NoError(t, g.ValidateNoSelfLoops())
}

// Both orderings must report the full implicated node set when handed a
// cyclic graph, not merely two endpoints.
func TestSortCycleReporting(t *testing.T) {
	g := newRaw(t, "a", "b", "c", "d")
	g.addEdgeUnchecked("d", "a")
	g.addEdgeUnchecked("a", "b")
	g.addEdgeUnchecked("b", "c")
	g.addEdgeUnchecked("c", "a")

	_, err := g.TopologicalSort()
	var cycle *CycleError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "c"}, cycle.Nodes)

	_, err = g.KahnSort()
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "b", "c"}, cycle.Nodes)
}
