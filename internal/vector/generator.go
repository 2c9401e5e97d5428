package vector

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// DefaultNonZero is the number of non-zero coordinates in an elemental vector.
const DefaultNonZero = 10

// Generator produces elemental (random index) vectors. Elemental vectors are
// sparse ternary: NonZero distinct coordinates set to +1 or -1 in equal
// proportion, so that two independent vectors are nearly orthogonal.
//
// Each term's vector is drawn from a source seeded with (seed, termID), which
// makes generation independent of request order.
type Generator struct {
	dim     int
	seed    int64
	nonZero int
}

// NewGenerator returns a generator for vectors of dimension dim.
// nonZero <= 0 selects DefaultNonZero; values above dim are clamped.
func NewGenerator(dim int, seed int64, nonZero int) (*Generator, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if nonZero <= 0 {
		nonZero = DefaultNonZero
	}
	if nonZero > dim {
		nonZero = dim
	}
	return &Generator{dim: dim, seed: seed, nonZero: nonZero}, nil
}

// Dimension returns the dimension of generated vectors.
func (g *Generator) Dimension() int { return g.dim }

// Seed returns the generator seed.
func (g *Generator) Seed() int64 { return g.seed }

// Generate returns the elemental vector for termID.
func (g *Generator) Generate(termID int) Vector {
	rng := rand.New(rand.NewPCG(uint64(g.seed), uint64(termID)))
	v := Zero(g.dim)
	for i, pos := range rng.Perm(g.dim)[:g.nonZero] {
		if i%2 == 0 {
			v[pos] = 1
		} else {
			v[pos] = -1
		}
	}
	return v
}

// ElementalCache holds the elemental vectors created during a session.
// Entries are created on first request and never evicted.
type ElementalCache struct {
	gen     *Generator
	mu      sync.Mutex
	vectors map[int]Vector
}

// NewElementalCache returns an empty cache backed by gen.
func NewElementalCache(gen *Generator) *ElementalCache {
	return &ElementalCache{
		gen:     gen,
		vectors: make(map[int]Vector),
	}
}

// Dimension returns the dimension of cached vectors.
func (c *ElementalCache) Dimension() int { return c.gen.Dimension() }

// GetOrCreate returns the elemental vector for termID, generating it on first
// use. Concurrent callers always observe the same vector for a term.
// The returned vector must not be modified.
func (c *ElementalCache) GetOrCreate(termID int) Vector {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.vectors[termID]; ok {
		return v
	}
	v := c.gen.Generate(termID)
	c.vectors[termID] = v
	return v
}

// Len returns the number of cached vectors.
func (c *ElementalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vectors)
}
