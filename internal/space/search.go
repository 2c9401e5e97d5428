package space

import (
	"github.com/munnellg/tri/internal/topk"
	"github.com/munnellg/tri/internal/vector"
)

// NearestVectors returns the n entries of r most similar to v, best first.
func NearestVectors(r Reader, v vector.Vector, n int) ([]vector.ObjectVector, error) {
	sel := topk.New(n)
	err := r.Scan(func(key string, candidate vector.Vector) error {
		sel.Offer(vector.ObjectVector{Key: key, Vector: candidate, Score: vector.Overlap(candidate, v)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sel.Results(), nil
}

// NearestToKey returns the n entries nearest to the vector stored under key.
// It reports false when key is not in r.
func NearestToKey(r Reader, key string, n int) ([]vector.ObjectVector, bool, error) {
	v, ok, err := r.Vector(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	res, err := NearestVectors(r, v, n)
	return res, true, err
}

// Sims compares the two spaces key by key and returns the n keys whose vectors
// moved the most, scored as 1 - overlap. Only scores within [min, max] are kept.
// Keys missing from second are skipped.
func Sims(first, second Reader, n int, min, max float64) ([]vector.ObjectVector, error) {
	sel := topk.New(n)
	err := first.Scan(func(key string, v vector.Vector) error {
		other, ok, err := second.Vector(key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		drift := 1 - vector.Overlap(v, other)
		if drift >= min && drift <= max {
			sel.Offer(vector.ObjectVector{Key: key, Vector: v, Score: drift})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sel.Results(), nil
}
