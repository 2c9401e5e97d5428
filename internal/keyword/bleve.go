package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const (
	termField = "term"
	freqField = "freq"
	batchSize = 1000
)

// BleveIndex implements TermIndex and TermDictionary using Bleve. Each
// dictionary term is one document whose ID is the term itself.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Terms are matched verbatim: no lowercasing, no stemming.
	docMapping.AddFieldMappingsAt(termField, bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt(freqField, bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("term", docMapping)
	im.DefaultType = "term"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces terms, in batches.
func (b *BleveIndex) Index(ctx context.Context, terms []TermEntry) error {
	batch := b.index.NewBatch()
	for _, t := range terms {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := map[string]interface{}{termField: t.Term, freqField: float64(t.Frequency)}
		if err := batch.Index(t.Term, doc); err != nil {
			return fmt.Errorf("index term %q: %w", t.Term, err)
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

// Search returns up to limit terms matching query, best first; equal scores
// are ordered by descending frequency.
// A query containing '*' or '?' is a wildcard pattern. Otherwise, with
// fuzzy matching enabled, terms within the configured edit distance match;
// without it the exact term ranks first, followed by terms it prefixes.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*TermResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	search := bleve.NewSearchRequest(buildQuery(query, fuzzyEnabled, fuzziness))
	search.Size = limit
	search.Fields = []string{freqField}
	search.SortBy([]string{"-_score", "-" + freqField, "_id"})
	results, err := b.index.SearchInContext(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*TermResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &TermResult{Term: hit.ID, Score: hit.Score, Frequency: frequencyOf(hit.Fields)}
	}
	return out, nil
}

func buildQuery(query string, fuzzyEnabled bool, fuzziness int) blevequery.Query {
	if strings.ContainsAny(query, "*?") {
		wq := bleve.NewWildcardQuery(query)
		wq.SetField(termField)
		return wq
	}
	if fuzzyEnabled {
		fq := bleve.NewFuzzyQuery(query)
		fq.SetFuzziness(fuzziness)
		fq.SetField(termField)
		return fq
	}
	exact := bleve.NewTermQuery(query)
	exact.SetField(termField)
	exact.SetBoost(2)
	prefix := bleve.NewPrefixQuery(query)
	prefix.SetField(termField)
	return bleve.NewDisjunctionQuery(exact, prefix)
}

func frequencyOf(fields map[string]interface{}) int64 {
	if f, ok := fields[freqField].(float64); ok {
		return int64(f)
	}
	return 0
}

// Delete removes a term from the index.
func (b *BleveIndex) Delete(ctx context.Context, term string) error {
	return b.index.Delete(term)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the number of indexed terms.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// AllTerms returns every indexed term from the term field dictionary.
func (b *BleveIndex) AllTerms() ([]string, error) {
	dict, err := b.index.FieldDict(termField)
	if err != nil {
		return nil, fmt.Errorf("failed to read term dictionary: %w", err)
	}
	defer dict.Close()

	terms := make([]string, 0)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}

// TermFrequency returns the frequency stored with term.
func (b *BleveIndex) TermFrequency(term string) (int64, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{term}))
	req.Size = 1
	req.Fields = []string{freqField}
	results, err := b.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to look up term frequency: %w", err)
	}
	if len(results.Hits) == 0 {
		return 0, nil
	}
	return frequencyOf(results.Hits[0].Fields), nil
}
