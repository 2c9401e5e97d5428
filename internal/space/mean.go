package space

import (
	"errors"

	"github.com/munnellg/tri/internal/vector"
)

// ErrEmptySpace is returned by operations that need at least one vector.
var ErrEmptySpace = errors.New("vector space is empty")

// Mean returns the coordinate-wise average of every vector in r. Zero vectors
// count towards the denominator.
func Mean(r Reader) (vector.Vector, error) {
	mean := vector.Zero(r.Dimension())
	n := 0
	err := r.Scan(func(_ string, v vector.Vector) error {
		mean.Superpose(v, 1)
		n++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptySpace
	}
	for i := range mean {
		mean[i] /= float32(n)
	}
	return mean, nil
}
