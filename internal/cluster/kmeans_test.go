package cluster

import (
	"math/rand/v2"
	"testing"

	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(vs ...vector.Vector) []vector.ObjectVector {
	out := make([]vector.ObjectVector, len(vs))
	for i, v := range vs {
		out[i] = vector.ObjectVector{Key: string(rune('a' + i)), Vector: v}
	}
	return out
}

func TestKMeans_SingleCluster(t *testing.T) {
	in := items(vector.Vector{1, 0}, vector.Vector{0, 1}, vector.Vector{1, 1})
	c, err := KMeans(nil, in, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 0, 0}, c.Assignments)
	assert.Equal(t, 1, c.Iterations)
	want := vector.Vector{2, 2}
	want.Normalize()
	assert.InDeltaSlice(t, []float32(want), []float32(c.Centroids[0]), 1e-6)
}

func TestKMeans_SeparatesGroups(t *testing.T) {
	in := items(
		vector.Vector{1, 0.1, 0},
		vector.Vector{0.9, 0, 0.1},
		vector.Vector{0, 1, 0.1},
		vector.Vector{0.1, 0.9, 0},
	)
	c, err := KMeans(nil, in, 2, WithAssignment([]int{0, 1, 0, 1}))
	require.NoError(t, err)

	assert.Equal(t, c.Assignments[0], c.Assignments[1])
	assert.Equal(t, c.Assignments[2], c.Assignments[3])
	assert.NotEqual(t, c.Assignments[0], c.Assignments[2])
	for _, a := range c.Assignments {
		assert.True(t, a >= 0 && a < 2)
	}
	for _, centroid := range c.Centroids {
		assert.InDelta(t, 1.0, centroid.Norm(), 1e-5)
	}
	members := c.Members()
	assert.Len(t, members[0], 2)
	assert.Len(t, members[1], 2)
}

func TestKMeans_FixedSeedIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	vs := make([]vector.Vector, 30)
	for i := range vs {
		v := make(vector.Vector, 8)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		vs[i] = v
	}
	run := func() *Clusters {
		c, err := KMeans(nil, items(vs...), 4, WithRand(rand.New(rand.NewPCG(42, 42))), WithMaxIterations(1000))
		if err != nil {
			require.ErrorIs(t, err, ErrNotConverged)
		}
		return c
	}
	first, second := run(), run()
	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Centroids, second.Centroids)
}

func TestKMeans_EmptyClusterHasZeroCentroid(t *testing.T) {
	in := items(vector.Vector{1, 0}, vector.Vector{1, 0.1})
	c, err := KMeans(nil, in, 3, WithAssignment([]int{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, c.Assignments)
	assert.True(t, c.Centroids[1].IsZero())
	assert.True(t, c.Centroids[2].IsZero())
}

func TestKMeans_TieKeepsLowestIndex(t *testing.T) {
	// Both clusters end up with identical centroids; every item overlaps
	// them equally and lands in cluster 0.
	in := items(vector.Vector{1, 0}, vector.Vector{1, 0})
	c, err := KMeans(nil, in, 2, WithAssignment([]int{1, 0}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, c.Assignments)
}

func TestKMeans_ZeroItemGoesToFirstCluster(t *testing.T) {
	in := items(vector.Vector{0, 0}, vector.Vector{0, 1}, vector.Vector{1, 0})
	c, err := KMeans(nil, in, 2, WithAssignment([]int{1, 1, 0}))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Assignments[0])
}

func TestKMeans_LooksUpVectorsInReader(t *testing.T) {
	r, err := space.NewMemoryReader(2, map[string]vector.Vector{
		"x": {1, 0},
		"y": {0, 1},
	})
	require.NoError(t, err)
	c, err := KMeans(r, []vector.ObjectVector{{Key: "x"}, {Key: "y"}}, 2, WithAssignment([]int{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, c.Assignments)

	_, err = KMeans(r, []vector.ObjectVector{{Key: "missing"}}, 1)
	assert.Error(t, err)
}

func TestKMeans_MaxIterations(t *testing.T) {
	in := items(vector.Vector{1, 0}, vector.Vector{0, 1}, vector.Vector{0, 1})
	c, err := KMeans(nil, in, 2, WithAssignment([]int{0, 0, 1}), WithMaxIterations(1))
	assert.ErrorIs(t, err, ErrNotConverged)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.Iterations)
}

func TestKMeans_InvalidInput(t *testing.T) {
	_, err := KMeans(nil, items(vector.Vector{1}), 0)
	assert.ErrorIs(t, err, ErrInvalidK)
	_, err = KMeans(nil, nil, 2)
	assert.ErrorIs(t, err, ErrNoItems)
	_, err = KMeans(nil, items(vector.Vector{1}), 2, WithAssignment([]int{5}))
	assert.Error(t, err)
	_, err = KMeans(nil, items(vector.Vector{1}, vector.Vector{1, 2}), 1)
	assert.ErrorIs(t, err, space.ErrDimensionMismatch)
}
