package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlap_SelfIsOne(t *testing.T) {
	v := Vector{3, -1, 0, 2}
	assert.InDelta(t, 1.0, Overlap(v, v), 1e-6)
}

func TestOverlap_ZeroOperand(t *testing.T) {
	x := Vector{1, 2, 3}
	z := Zero(3)
	assert.Equal(t, 0.0, Overlap(z, x))
	assert.Equal(t, 0.0, Overlap(x, z))
	assert.Equal(t, 0.0, Overlap(z, z))
}

func TestOverlap_Symmetric(t *testing.T) {
	a := Vector{1, 2, 0.5}
	b := Vector{-0.3, 4, 1}
	assert.Equal(t, Overlap(a, b), Overlap(b, a))
}

func TestOverlap_DimensionMismatch(t *testing.T) {
	assert.Equal(t, 0.0, Overlap(Vector{1, 0}, Vector{1, 0, 0}))
}

func TestOverlap_Orthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, Overlap(Vector{1, 0}, Vector{0, 5}), 1e-9)
	assert.InDelta(t, -1.0, Overlap(Vector{1, 1}, Vector{-2, -2}), 1e-6)
}

func TestNormalize(t *testing.T) {
	v := Vector{3, 4}
	require.True(t, v.Normalize())
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, v.Norm(), 1e-6)

	z := Zero(4)
	assert.False(t, z.Normalize())
	assert.True(t, z.IsZero())
}

func TestSuperpose(t *testing.T) {
	v := Zero(3)
	v.Superpose(Vector{1, 0, -1}, 2)
	v.Superpose(Vector{0, 1, 1}, 1)
	assert.Equal(t, Vector{2, 1, -1}, v)
}

func TestClone_NoAliasing(t *testing.T) {
	v := Vector{1, 2}
	c := v.Clone()
	c[0] = 9
	assert.Equal(t, float32(1), v[0])
}
