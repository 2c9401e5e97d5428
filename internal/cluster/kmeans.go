// Package cluster groups vectors with k-means under the overlap measure.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrInvalidK is returned when k < 1.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrNoItems is returned when there is nothing to cluster.
	ErrNoItems = errors.New("no items to cluster")
	// ErrNotConverged is returned with the last state when the iteration cap is hit.
	ErrNotConverged = errors.New("k-means did not converge")
)

// Clusters is the result of a k-means run. Assignments[i] is the cluster of
// item i; Centroids[c] is the normalized sum of the members of c, or the zero
// vector when c is empty.
type Clusters struct {
	Assignments []int
	Centroids   []vector.Vector
	Iterations  int
}

// Members returns the item indexes assigned to each cluster.
func (c *Clusters) Members() [][]int {
	out := make([][]int, len(c.Centroids))
	for i, a := range c.Assignments {
		out[a] = append(out[a], i)
	}
	return out
}

type options struct {
	rng     *rand.Rand
	initial []int
	maxIter int
	logger  *zap.Logger
}

// Option configures KMeans.
type Option func(*options)

// WithRand sets the source for the random initial assignment.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithAssignment starts from a fixed assignment instead of a random one.
func WithAssignment(a []int) Option {
	return func(o *options) { o.initial = a }
}

// WithMaxIterations stops after n passes. 0 means no cap.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIter = n }
}

// WithLogger logs each pass at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// KMeans clusters items into k groups. An item without a vector is looked up
// in r by key. Items start in random clusters; each pass recomputes the
// centroids and moves every item to the centroid it overlaps most, keeping
// the lowest index on ties. Passes repeat until nothing moves.
//
// Without WithMaxIterations there is no cap, so degenerate inputs that make
// assignments oscillate never return.
func KMeans(r space.Reader, items []vector.ObjectVector, k int, opts ...Option) (*Clusters, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	vectors, err := resolve(r, items)
	if err != nil {
		return nil, err
	}
	dim := len(vectors[0])

	c := &Clusters{Assignments: make([]int, len(items)), Centroids: make([]vector.Vector, k)}
	switch {
	case o.initial != nil:
		if len(o.initial) != len(items) {
			return nil, fmt.Errorf("initial assignment has %d entries for %d items", len(o.initial), len(items))
		}
		for i, a := range o.initial {
			if a < 0 || a >= k {
				return nil, fmt.Errorf("initial assignment %d of item %d outside [0, %d)", a, i, k)
			}
		}
		copy(c.Assignments, o.initial)
	default:
		rng := o.rng
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		for i := range c.Assignments {
			c.Assignments[i] = rng.IntN(k)
		}
	}

	for {
		c.Iterations++
		for j := range c.Centroids {
			c.Centroids[j] = vector.Zero(dim)
		}
		for i, v := range vectors {
			c.Centroids[c.Assignments[i]].Superpose(v, 1)
		}
		for _, centroid := range c.Centroids {
			centroid.Normalize()
		}

		moved := 0
		for i, v := range vectors {
			if j := nearest(v, c.Centroids); j != c.Assignments[i] {
				c.Assignments[i] = j
				moved++
			}
		}
		o.logger.Debug("k-means pass", zap.Int("iteration", c.Iterations), zap.Int("moved", moved))
		if moved == 0 {
			return c, nil
		}
		if o.maxIter > 0 && c.Iterations >= o.maxIter {
			return c, fmt.Errorf("%w after %d iterations", ErrNotConverged, c.Iterations)
		}
	}
}

// nearest returns the index of the centroid with the highest overlap with v.
// Only a strictly greater overlap replaces the current best.
func nearest(v vector.Vector, centroids []vector.Vector) int {
	best, bestScore := 0, math.Inf(-1)
	for j, c := range centroids {
		if s := vector.Overlap(v, c); s > bestScore {
			best, bestScore = j, s
		}
	}
	return best
}

func resolve(r space.Reader, items []vector.ObjectVector) ([]vector.Vector, error) {
	vectors := make([]vector.Vector, len(items))
	dim := 0
	if r != nil {
		dim = r.Dimension()
	}
	for i, it := range items {
		v := it.Vector
		if v == nil {
			if r == nil {
				return nil, fmt.Errorf("item %q has no vector and no reader is given", it.Key)
			}
			found, ok, err := r.Vector(it.Key)
			if err != nil {
				return nil, fmt.Errorf("lookup %q: %w", it.Key, err)
			}
			if !ok {
				return nil, fmt.Errorf("item %q not in vector space", it.Key)
			}
			v = found
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: item %q has %d, expected %d", space.ErrDimensionMismatch, it.Key, len(v), dim)
		}
		vectors[i] = v
	}
	return vectors, nil
}
