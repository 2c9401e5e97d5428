package keyword

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type staticSource struct {
	terms map[string]int64
	err   error
}

func (s staticSource) TermFrequencies(ctx context.Context, fn func(string, int64) error) error {
	for term, freq := range s.terms {
		if err := fn(term, freq); err != nil {
			return err
		}
	}
	return s.err
}

func TestIndexAll(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer idx.Close()

	src := staticSource{terms: map[string]int64{"war": 9, "peace": 4, "ward": 1}}
	n, err := IndexAll(context.Background(), idx, src)
	if err != nil {
		t.Fatalf("IndexAll: %v", err)
	}
	if n != 3 {
		t.Errorf("indexed %d terms, want 3", n)
	}
	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 3 {
		t.Errorf("DocCount = %d, want 3", count)
	}
	freq, err := idx.TermFrequency("war")
	if err != nil {
		t.Fatalf("TermFrequency: %v", err)
	}
	if freq != 9 {
		t.Errorf("frequency of war = %d, want 9", freq)
	}
}

func TestIndexAll_SourceError(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer idx.Close()

	boom := errors.New("boom")
	_, err = IndexAll(context.Background(), idx, staticSource{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}
