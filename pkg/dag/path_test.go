package dag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lprior-repo/oya-sub002/pkg/dag"
	"github.com/lprior-repo/oya-sub002/pkg/models"
)

func TestCriticalPath(t *testing.T) {
	t.Run("DefaultWeights", func(t *testing.T) {
		g := buildDiamond(t) // a -> {b,c} -> d, every node weighs 1
		path, total, err := g.CriticalPath(nil)
		require.NoError(t, err)
		assert.Equal(t, 3.0, total)
		assert.Len(t, path, 3)
		assert.Equal(t, "a", path[0])
		assert.Equal(t, "d", path[2])
	})

	t.Run("WeightsSteerThePath", func(t *testing.T) {
		g := buildDiamond(t)
		path, total, err := g.CriticalPath(map[string]float64{"c": 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "d"}, path)
		assert.Equal(t, 12.0, total) // 1 + 10 + 1
	})

	t.Run("AbsentWeightDefaultsToOne", func(t *testing.T) {
		g := buildChain(t, "a", "b", "c")
		path, total, err := g.CriticalPath(map[string]float64{"b": 5})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, path)
		assert.Equal(t, 7.0, total)
	})

	t.Run("EmptyGraph", func(t *testing.T) {
		path, total, err := dag.New().CriticalPath(nil)
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Zero(t, total)
	})

	t.Run("DisconnectedPicksHeaviest", func(t *testing.T) {
		g := buildChain(t, "a", "b")
		require.NoError(t, g.AddNode("x"))
		require.NoError(t, g.AddNode("y"))
		require.NoError(t, g.AddNode("z"))
		require.NoError(t, g.AddEdge("x", "y", models.BlockingDependency))
		require.NoError(t, g.AddEdge("y", "z", models.BlockingDependency))

		path, total, err := g.CriticalPath(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "z"}, path)
		assert.Equal(t, 3.0, total)
	})
}
