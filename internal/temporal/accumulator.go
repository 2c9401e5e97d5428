// Package temporal builds context vectors for a term over a window of years
// by superposing the elemental vectors of its co-occurring neighbors.
package temporal

import (
	"context"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/munnellg/tri/internal/storage"
	"github.com/munnellg/tri/internal/topk"
	"github.com/munnellg/tri/internal/vector"
	"go.uber.org/zap"
)

const progressEvery = 100000

// Accumulator turns stored co-occurrence counts into context vectors. The
// store is treated as read-only for the accumulator's lifetime.
type Accumulator struct {
	store     storage.Storage
	elements  *vector.ElementalCache
	contexts  *lru.Cache[window, vector.Vector]
	cacheSize int
	logger    *zap.Logger
}

type window struct {
	termID, start, end int
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithLogger sets a logger for scan progress.
func WithLogger(l *zap.Logger) Option {
	return func(a *Accumulator) { a.logger = l }
}

// WithCacheSize keeps up to n built context vectors. 0 disables the cache.
func WithCacheSize(n int) Option {
	return func(a *Accumulator) { a.cacheSize = n }
}

// New returns an accumulator reading from store and drawing elemental vectors
// from elements.
func New(store storage.Storage, elements *vector.ElementalCache, opts ...Option) (*Accumulator, error) {
	a := &Accumulator{store: store, elements: elements, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.cacheSize > 0 {
		c, err := lru.New[window, vector.Vector](a.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create context cache: %w", err)
		}
		a.contexts = c
	}
	return a, nil
}

// Dimension returns the dimension of the vectors built.
func (a *Accumulator) Dimension() int { return a.elements.Dimension() }

// Build returns the context vector of term for start <= year <= end. It
// reports false for a term not in the dictionary. A known term without
// evidence in the window yields the zero vector; otherwise the result has
// unit norm. The returned vector is owned by the caller.
func (a *Accumulator) Build(ctx context.Context, term string, start, end int) (vector.Vector, bool, error) {
	id, ok, err := a.store.TermID(ctx, term)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := a.BuildID(ctx, id, start, end)
	if err != nil {
		return nil, false, fmt.Errorf("build %q [%d, %d]: %w", term, start, end, err)
	}
	return v, true, nil
}

// BuildID is Build for a known term ID.
func (a *Accumulator) BuildID(ctx context.Context, termID, start, end int) (vector.Vector, error) {
	key := window{termID: termID, start: start, end: end}
	if a.contexts != nil {
		if v, ok := a.contexts.Get(key); ok {
			return v.Clone(), nil
		}
	}
	v := vector.Zero(a.Dimension())
	err := a.store.Cooccurrences(ctx, termID, start, end, func(c storage.Cooccurrence) error {
		v.Superpose(a.elements.GetOrCreate(c.NeighborID), float32(c.Count))
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.Normalize()
	if a.contexts != nil {
		a.contexts.Add(key, v.Clone())
	}
	return v, nil
}

type entry struct {
	id   int
	term string
}

func (a *Accumulator) dictionary(ctx context.Context) ([]entry, error) {
	var terms []entry
	err := a.store.Terms(ctx, func(id int, term string) error {
		terms = append(terms, entry{id: id, term: term})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return terms, nil
}

// Scan builds the context vector of every dictionary term for the window and
// passes it to fn in dictionary order.
func (a *Accumulator) Scan(ctx context.Context, start, end int, fn func(term string, v vector.Vector) error) error {
	terms, err := a.dictionary(ctx)
	if err != nil {
		return err
	}
	for i, t := range terms {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := a.BuildID(ctx, t.id, start, end)
		if err != nil {
			return fmt.Errorf("build %q [%d, %d]: %w", t.term, start, end, err)
		}
		if err := fn(t.term, v); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			a.logger.Debug("context vectors built", zap.Int("done", i+1), zap.Int("total", len(terms)))
		}
	}
	return nil
}

// ScanElemental passes the elemental vector of every dictionary term to fn.
func (a *Accumulator) ScanElemental(ctx context.Context, fn func(term string, v vector.Vector) error) error {
	terms, err := a.dictionary(ctx)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if err := fn(t.term, a.elements.GetOrCreate(t.id)); err != nil {
			return err
		}
	}
	return nil
}

// NearestVectors scores every dictionary term's window vector against v and
// returns the n best, highest overlap first.
func (a *Accumulator) NearestVectors(ctx context.Context, v vector.Vector, start, end, n int) ([]vector.ObjectVector, error) {
	sel := topk.New(n)
	err := a.Scan(ctx, start, end, func(term string, tv vector.Vector) error {
		sel.Offer(vector.ObjectVector{Key: term, Score: vector.Overlap(tv, v)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sel.Results(), nil
}

// NearestWords returns the n co-occurrence entries of term inside the window
// with the highest raw counts. A neighbor seen in several years can appear
// once per year. It reports false for an unknown term.
func (a *Accumulator) NearestWords(ctx context.Context, term string, start, end, n int) ([]vector.ObjectVector, bool, error) {
	id, ok, err := a.store.TermID(ctx, term)
	if err != nil || !ok {
		return nil, false, err
	}
	sel := topk.New(n)
	seen := 0
	err = a.store.Cooccurrences(ctx, id, start, end, func(c storage.Cooccurrence) error {
		sel.Offer(vector.ObjectVector{Key: strconv.Itoa(c.NeighborID), Score: float64(c.Count)})
		seen++
		return nil
	})
	if err != nil {
		return nil, true, fmt.Errorf("neighbors of %q: %w", term, err)
	}
	res := sel.Results()
	for i := range res {
		nid, _ := strconv.Atoi(res[i].Key)
		name, found, err := a.store.Term(ctx, nid)
		if err != nil {
			return nil, true, err
		}
		if !found {
			return nil, true, fmt.Errorf("neighbor id %d of %q not in dictionary", nid, term)
		}
		res[i].Key = name
	}
	a.logger.Debug("nearest words", zap.String("term", term), zap.Int("kept", len(res)), zap.Int("entries", seen))
	return res, true, nil
}
