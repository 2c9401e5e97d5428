// Package cli provides output helpers shared by the tri commands and shell.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/munnellg/tri/internal/keyword"
	"github.com/munnellg/tri/internal/vector"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is one tab-separated record per line (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (supported: text, json)", s)
	}
}

// Score is the JSON form of a scored key.
type Score struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
}

// FormatScore renders a score the same way in every text output.
func FormatScore(s float64) string {
	return strconv.FormatFloat(s, 'g', -1, 64)
}

// WriteScores writes scored keys to w, "key<TAB>score" per line in text.
func WriteScores(w io.Writer, results []vector.ObjectVector, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]Score, len(results))
		for i, r := range results {
			out[i] = Score{Key: r.Key, Score: r.Score}
		}
		return encode(w, out)
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Key, FormatScore(r.Score)); err != nil {
			return err
		}
	}
	return nil
}

// Term is the JSON form of a term lookup hit.
type Term struct {
	Term      string `json:"term"`
	Frequency int64  `json:"frequency"`
}

// WriteTerms writes term lookup hits to w, "term<TAB>frequency" per line in text.
func WriteTerms(w io.Writer, results []*keyword.TermResult, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]Term, len(results))
		for i, r := range results {
			out[i] = Term{Term: r.Term, Frequency: r.Frequency}
		}
		return encode(w, out)
	}
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", r.Term, r.Frequency); err != nil {
			return err
		}
	}
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
