package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lprior-repo/oya-sub002/pkg/dag"
	"github.com/lprior-repo/oya-sub002/pkg/models"
)

func TestFingerprint(t *testing.T) {
	t.Run("InsertionOrderIndependent", func(t *testing.T) {
		g1 := dag.New()
		require.NoError(t, g1.AddNode("a"))
		require.NoError(t, g1.AddNode("b"))
		require.NoError(t, g1.AddNode("c"))
		require.NoError(t, g1.AddEdge("a", "b", models.BlockingDependency))
		require.NoError(t, g1.AddEdge("b", "c", models.PreferredOrder))

		g2 := dag.New()
		require.NoError(t, g2.AddNode("c"))
		require.NoError(t, g2.AddNode("a"))
		require.NoError(t, g2.AddNode("b"))
		require.NoError(t, g2.AddEdge("b", "c", models.PreferredOrder))
		require.NoError(t, g2.AddEdge("a", "b", models.BlockingDependency))

		assert.Equal(t, g1.Fingerprint(), g2.Fingerprint())
	})

	t.Run("EdgeKindMatters", func(t *testing.T) {
		g1 := dag.New()
		require.NoError(t, g1.AddNode("a"))
		require.NoError(t, g1.AddNode("b"))
		require.NoError(t, g1.AddEdge("a", "b", models.BlockingDependency))

		g2 := dag.New()
		require.NoError(t, g2.AddNode("a"))
		require.NoError(t, g2.AddNode("b"))
		require.NoError(t, g2.AddEdge("a", "b", models.PreferredOrder))

		assert.NotEqual(t, g1.Fingerprint(), g2.Fingerprint())
	})

	t.Run("RemovalChangesIt", func(t *testing.T) {
		g := buildChain(t, "a", "b")
		before := g.Fingerprint()
		require.NoError(t, g.RemoveEdge("a", "b"))
		assert.NotEqual(t, before, g.Fingerprint())
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildDiamond(t)
	snap := g.ToSnapshot()

	restored, err := dag.FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, g.Fingerprint(), restored.Fingerprint())
	assert.Equal(t, g.Nodes(), restored.Nodes())
	assert.Equal(t, g.Edges(), restored.Edges())
}

func TestFromSnapshot_RejectsCycle(t *testing.T) {
	snap := models.GraphSnapshot{
		Nodes: []string{"a", "b"},
		Edges: []models.Edge{
			{From: "a", To: "b", Kind: models.BlockingDependency},
			{From: "b", To: "a", Kind: models.BlockingDependency},
		},
	}
	_, err := dag.FromSnapshot(snap)
	var cycle *dag.CycleError
	assert.ErrorAs(t, err, &cycle)
}

func TestLayout(t *testing.T) {
	g := buildDiamond(t)

	pos := g.Layout(30)
	assert.Len(t, pos, 4)

	// Seeded placement makes repeated runs reproducible.
	again := g.Layout(30)
	assert.Equal(t, pos, again)

	assert.Empty(t, dag.New().Layout(10))
}
