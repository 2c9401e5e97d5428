// Package keyword provides lexical lookup over the term dictionary: exact,
// prefix, wildcard and fuzzy matching, plus spelling suggestions for unknown terms.
package keyword

import (
	"context"
)

// SearchOptions optional parameters for term search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled matches terms within Fuzziness edits of the query instead
	// of by exact value or prefix.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// TermEntry is a dictionary term with its total co-occurrence count.
type TermEntry struct {
	Term      string
	Frequency int64
}

// TermIndex defines term lookup operations.
type TermIndex interface {
	Index(ctx context.Context, terms []TermEntry) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*TermResult, error)
	Delete(ctx context.Context, term string) error
	Close() error
	// DocCount returns the number of indexed terms.
	DocCount() (uint64, error)
}

// TermResult is a single term search hit.
type TermResult struct {
	Term      string
	Score     float64
	Frequency int64
}

// TermDictionary provides access to the term dictionary for suggestions.
// This interface allows dependency injection for testing.
type TermDictionary interface {
	// AllTerms returns every indexed term.
	AllTerms() ([]string, error)
	// TermFrequency returns the stored frequency of term, 0 when absent.
	TermFrequency(term string) (int64, error)
}
