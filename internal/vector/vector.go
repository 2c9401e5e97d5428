// Package vector provides dense real vectors and the overlap measure used to
// compare them.
package vector

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Vector is a dense real vector. A nil or empty Vector has dimension 0.
type Vector []float32

// Zero returns the zero vector of the given dimension.
func Zero(dim int) Vector {
	return make(Vector, dim)
}

// Dimension returns the number of coordinates.
func (v Vector) Dimension() int {
	return len(v)
}

// Clone returns a copy of v that shares no memory with it.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// IsZero reports whether every coordinate is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Superpose adds weight*other into v in place. Both vectors must have the same dimension.
func (v Vector) Superpose(other Vector, weight float32) {
	if weight == 1 {
		vek32.Add_Inplace(v, other)
		return
	}
	vek32.Add_Inplace(v, vek32.MulNumber(other, weight))
}

// Scale multiplies every coordinate by f in place.
func (v Vector) Scale(f float32) {
	vek32.MulNumber_Inplace(v, f)
}

// Norm returns the Euclidean norm of v.
func (v Vector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(float64(vek32.Dot(v, v)))
}

// Normalize scales v to unit length in place. It returns false and leaves v
// untouched when v is the zero vector.
func (v Vector) Normalize() bool {
	n := v.Norm()
	if n == 0 {
		return false
	}
	v.Scale(float32(1 / n))
	return true
}

// Overlap returns the cosine similarity of a and b. It is symmetric, and is 0
// when either operand is the zero vector or the dimensions differ.
func Overlap(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	o := float64(vek32.Dot(a, b)) / (na * nb)
	// Rounding can push the ratio just outside [-1, 1].
	return math.Max(-1, math.Min(1, o))
}

// ObjectVector is a keyed vector carrying a score, as produced by searches.
// Vector may be nil when only the key and score are meaningful.
type ObjectVector struct {
	Key    string
	Vector Vector
	Score  float64
}
