package keyword

import (
	"sort"
	"sync"
)

// Suggestion is a dictionary term close to an unknown one.
type Suggestion struct {
	Term      string  // The suggested term
	Distance  int     // Edit distance from the unknown term
	Frequency int64   // Total co-occurrence count
	Score     float64 // Combined score for ranking
}

// Suggester proposes dictionary terms for terms that are not in it.
type Suggester struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int64
	maxSuggestions int

	// Cached terms for faster lookup
	termsCache []string
	termSet    map[string]struct{}
	cacheMu    sync.RWMutex
	cacheValid bool
}

// SuggesterOption is a functional option for configuring Suggester.
type SuggesterOption func(*Suggester)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency sets the minimum frequency for suggestions.
// Terms with lower frequency are ignored (likely rare or noise).
func WithMinFrequency(f int64) SuggesterOption {
	return func(s *Suggester) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions returned.
func WithMaxSuggestions(n int) SuggesterOption {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSuggester creates a Suggester over dict.
func NewSuggester(dict TermDictionary, opts ...SuggesterOption) *Suggester {
	s := &Suggester{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
		termSet:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshCache reloads the term list from the dictionary.
// Call it after the dictionary changes.
func (s *Suggester) RefreshCache() error {
	terms, err := s.dictionary.AllTerms()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.termsCache = terms
	s.termSet = make(map[string]struct{}, len(terms))
	for _, t := range terms {
		s.termSet[t] = struct{}{}
	}
	s.cacheValid = true
	return nil
}

func (s *Suggester) ensureCache() error {
	s.cacheMu.RLock()
	valid := s.cacheValid
	s.cacheMu.RUnlock()
	if valid {
		return nil
	}
	return s.RefreshCache()
}

// Known reports whether term is in the dictionary.
func (s *Suggester) Known(term string) (bool, error) {
	if err := s.ensureCache(); err != nil {
		return false, err
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	_, ok := s.termSet[term]
	return ok, nil
}

// Suggest returns dictionary terms within the maximum edit distance of term,
// closest and most frequent first. A term that is in the dictionary gets no
// suggestions.
func (s *Suggester) Suggest(term string) ([]Suggestion, error) {
	if err := s.ensureCache(); err != nil {
		return nil, err
	}

	s.cacheMu.RLock()
	terms := s.termsCache
	_, known := s.termSet[term]
	s.cacheMu.RUnlock()
	if known {
		return nil, nil
	}

	termLen := len([]rune(term))
	suggestions := make([]Suggestion, 0)
	for _, dictTerm := range terms {
		// Quick length check - if length difference > maxDistance, can't be within distance
		lenDiff := len([]rune(dictTerm)) - termLen
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > s.maxDistance {
			continue
		}

		distance := EditDistance(term, dictTerm)
		if distance > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.TermFrequency(dictTerm)
		if err != nil {
			return nil, err
		}
		if freq < s.minFreq {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Term:      dictTerm,
			Distance:  distance,
			Frequency: freq,
			// Lower distance is better, higher frequency is better.
			Score: float64(freq) / float64(distance+1),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Distance != suggestions[j].Distance {
			return suggestions[i].Distance < suggestions[j].Distance
		}
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions, nil
}

// EditDistance returns the optimal string alignment distance between a and b:
// insertions, deletions, substitutions and adjacent transpositions each cost one.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	lenA := len(runesA)
	lenB := len(runesB)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	d := make([][]int, lenA+1)
	for i := range d {
		d[i] = make([]int, lenB+1)
		d[i][0] = i
	}
	for j := 0; j <= lenB; j++ {
		d[0][j] = j
	}

	for i := 1; i <= lenA; i++ {
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}
			d[i][j] = min(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
			if i > 1 && j > 1 && runesA[i-1] == runesB[j-2] && runesA[i-2] == runesB[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+cost)
			}
		}
	}
	return d[lenA][lenB]
}
