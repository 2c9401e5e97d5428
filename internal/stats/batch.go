package stats

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/munnellg/tri/internal/temporal"
	"github.com/munnellg/tri/internal/vector"
	"github.com/munnellg/tri/pkg/utils"
	"go.uber.org/zap"
)

// Defaults for batch runs.
const (
	DefaultThreshold = 0.001
	DefaultSamples   = 1000
)

// Batch computes similarity tables straight from the co-occurrence store,
// building each term's vector per window instead of reading period files.
type Batch struct {
	Accumulator *temporal.Accumulator
	Windows     []temporal.Window
	Mode        Mode
	// Threshold zeroes every value below it.
	Threshold float64
	// Samples caps the number of terms; a larger input is sampled down.
	Samples int
	Seed    int64
	Logger  *zap.Logger
}

// Run computes the table for terms. Unknown terms score 0 everywhere.
func (b *Batch) Run(ctx context.Context, terms []string) (*Table, error) {
	logger := utils.OrNop(b.Logger)
	mode := b.Mode
	if mode == "" {
		mode = Cumulative
	}
	terms = Sample(terms, b.Samples, b.Seed)
	tr := NewTracker(terms, mode)
	for _, w := range b.Windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lookup := func(term string) (vector.Vector, bool, error) {
			return b.Accumulator.Build(ctx, term, w.Start, w.End)
		}
		if err := tr.Add(strconv.Itoa(w.Start), lookup); err != nil {
			return nil, err
		}
		logger.Debug("batch window done", zap.Int("start", w.Start), zap.Int("end", w.End), zap.Int("terms", len(terms)))
	}
	t := tr.Table()
	t.Clamp(b.Threshold)
	return t, nil
}

// Sample returns n of terms chosen with a generator seeded by seed, keeping
// their input order. Inputs of at most n terms, or n <= 0, are returned as is.
func Sample(terms []string, n int, seed int64) []string {
	if n <= 0 || len(terms) <= n {
		return terms
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	idx := rng.Perm(len(terms))[:n]
	sort.Ints(idx)
	out := make([]string, n)
	for i, j := range idx {
		out[i] = terms[j]
	}
	return out
}

// ReadTerms reads one term per line, skipping blank lines and repeats.
func ReadTerms(r io.Reader) ([]string, error) {
	var terms []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		t := strings.TrimSpace(sc.Text())
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read terms: %w", err)
	}
	return terms, nil
}

// ParseYears parses "start:end:step"; step defaults to 1 when omitted.
func ParseYears(s string) ([]temporal.Window, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("invalid years %q, want start:end[:step]", s)
	}
	nums := make([]int, 3)
	nums[2] = 1
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid years %q: %w", s, err)
		}
		nums[i] = n
	}
	return temporal.Windows(nums[0], nums[1], nums[2])
}
