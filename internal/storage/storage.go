// Package storage defines the read side of the co-occurrence store the
// temporal accumulator draws its evidence from, plus the import path that
// fills it.
package storage

import (
	"context"
	"io"
)

// Cooccurrence is one stored count: the neighbor term was seen Count times in
// the context of a term during Year.
type Cooccurrence struct {
	NeighborID int
	Year       int
	Count      int
}

// ImportStats summarizes an Import run.
type ImportStats struct {
	Records int64
	Skipped int64
	Terms   int64
}

// Storage is the co-occurrence store. Term IDs are stable for the lifetime of
// the database, which makes them usable as elemental vector seeds.
type Storage interface {
	// Dictionary
	TermID(ctx context.Context, term string) (int, bool, error)
	Term(ctx context.Context, id int) (string, bool, error)
	Terms(ctx context.Context, fn func(id int, term string) error) error
	// TermFrequencies reports each term with the sum of its counts over all years.
	TermFrequencies(ctx context.Context, fn func(term string, total int64) error) error

	// Co-occurrences of termID with start <= year <= end, ordered by neighbor then year.
	Cooccurrences(ctx context.Context, termID, start, end int, fn func(Cooccurrence) error) error

	// Import reads tab-separated `term neighbor year count` records.
	Import(ctx context.Context, r io.Reader) (ImportStats, error)

	// Stats
	CountTerms(ctx context.Context) (int64, error)
	CountCooccurrences(ctx context.Context) (int64, error)
	YearRange(ctx context.Context) (min, max int, ok bool, err error)

	Close() error
}
