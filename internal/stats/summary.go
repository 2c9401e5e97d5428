package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one key's similarity series. Lowest and LowestLabel
// point at the period where the key moved the most.
type Summary struct {
	Key         string
	Mean        float64
	StdDev      float64
	Lowest      float64
	LowestLabel string
}

// Summarize returns a summary per key. The first period is skipped because
// nothing precedes it. Keys with a single period get zero statistics.
func Summarize(t *Table) []Summary {
	out := make([]Summary, len(t.Keys))
	for i, key := range t.Keys {
		out[i].Key = key
		row := t.Values[i]
		if len(row) < 2 {
			continue
		}
		rest := row[1:]
		if len(rest) == 1 {
			out[i].Mean = rest[0]
		} else {
			out[i].Mean, out[i].StdDev = stat.MeanStdDev(rest, nil)
		}
		j := floats.MinIdx(rest)
		out[i].Lowest = rest[j]
		out[i].LowestLabel = t.Labels[j+1]
	}
	return out
}
