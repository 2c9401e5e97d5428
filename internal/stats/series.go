// Package stats tracks how each term's vector moves from one period to the
// next and writes the resulting similarity tables.
package stats

import (
	"fmt"

	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/vector"
)

// Mode selects how a term's history is compared with each new period.
type Mode string

const (
	// Cumulative folds every period into a running vector and scores each
	// period by the overlap of the updated running vector with the previous one.
	Cumulative Mode = "cum"
	// Pointwise scores each period against the last period the term appeared in.
	Pointwise Mode = "point"
)

// ParseMode accepts "cum" and "point".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Cumulative, Pointwise:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q (supported: cum, point)", s)
	}
}

// Lookup returns the vector of key in one period.
type Lookup func(key string) (vector.Vector, bool, error)

// Table is one similarity series per key, one column per period.
type Table struct {
	Labels []string
	Keys   []string
	Values [][]float64
}

// Row returns the series of the i-th key.
func (t *Table) Row(i int) []float64 { return t.Values[i] }

// Clamp sets every value below min to 0.
func (t *Table) Clamp(min float64) {
	for _, row := range t.Values {
		for j, v := range row {
			if v < min {
				row[j] = 0
			}
		}
	}
}

// Tracker builds a Table one period at a time, keeping the last vector of
// every key between periods.
type Tracker struct {
	mode  Mode
	prev  []vector.Vector
	table Table
}

// NewTracker starts a table for keys.
func NewTracker(keys []string, mode Mode) *Tracker {
	return &Tracker{
		mode:  mode,
		prev:  make([]vector.Vector, len(keys)),
		table: Table{Keys: append([]string(nil), keys...), Values: make([][]float64, len(keys))},
	}
}

// Add scores every key in the period label. Negative overlaps score 0. A key
// absent from the period scores 0 and keeps its previous vector. Before a key's first appearance the
// previous vector is zero, so its first score is 0 as well.
func (t *Tracker) Add(label string, lookup Lookup) error {
	t.table.Labels = append(t.table.Labels, label)
	for i, key := range t.table.Keys {
		v, ok, err := lookup(key)
		if err != nil {
			return fmt.Errorf("period %s, key %q: %w", label, key, err)
		}
		score := 0.0
		if ok {
			cur := v.Clone()
			prev := t.prev[i]
			if t.mode == Cumulative {
				if prev != nil {
					cur.Superpose(prev, 1)
				}
				cur.Normalize()
			}
			if prev != nil {
				score = max(0, vector.Overlap(cur, prev))
			}
			t.prev[i] = cur
		}
		t.table.Values[i] = append(t.table.Values[i], score)
	}
	return nil
}

// Table returns the table built so far.
func (t *Tracker) Table() *Table { return &t.table }

// Opener opens the space of one period.
type Opener func(year int) (space.Reader, error)

// Compute builds the table of keys over the spaces of years, in the order
// given. Each space is opened, read and closed in turn.
func Compute(keys []string, years []int, open Opener, mode Mode) (*Table, error) {
	tr := NewTracker(keys, mode)
	for _, y := range years {
		r, err := open(y)
		if err != nil {
			return nil, err
		}
		err = tr.Add(fmt.Sprint(y), r.Vector)
		cerr := r.Close()
		if err != nil {
			return nil, err
		}
		if cerr != nil {
			return nil, cerr
		}
	}
	return tr.Table(), nil
}
