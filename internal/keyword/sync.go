package keyword

import (
	"context"
	"fmt"
)

const syncChunk = 10000

// FrequencySource enumerates dictionary terms with their total counts.
type FrequencySource interface {
	TermFrequencies(ctx context.Context, fn func(term string, total int64) error) error
}

// IndexAll indexes every term of src and returns how many were indexed.
func IndexAll(ctx context.Context, idx TermIndex, src FrequencySource) (int, error) {
	var (
		pending []TermEntry
		total   int
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := idx.Index(ctx, pending); err != nil {
			return err
		}
		total += len(pending)
		pending = pending[:0]
		return nil
	}
	err := src.TermFrequencies(ctx, func(term string, freq int64) error {
		pending = append(pending, TermEntry{Term: term, Frequency: freq})
		if len(pending) >= syncChunk {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return total, fmt.Errorf("index dictionary: %w", err)
	}
	return total, nil
}
