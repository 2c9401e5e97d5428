package space

import (
	"errors"
	"fmt"

	"github.com/munnellg/tri/internal/vector"
)

// UnionReader presents several readers as one space. A key present in more
// than one member resolves to the first member that holds it.
type UnionReader struct {
	readers []Reader
	dim     int
}

// NewUnionReader returns the union of readers, which must share a dimension.
func NewUnionReader(readers ...Reader) (*UnionReader, error) {
	if len(readers) == 0 {
		return nil, errors.New("union of no readers")
	}
	dim := readers[0].Dimension()
	for i, r := range readers[1:] {
		if r.Dimension() != dim {
			return nil, fmt.Errorf("%w: reader %d has %d, expected %d", ErrDimensionMismatch, i+1, r.Dimension(), dim)
		}
	}
	return &UnionReader{readers: readers, dim: dim}, nil
}

// Dimension returns the shared vector dimension.
func (u *UnionReader) Dimension() int { return u.dim }

// Vector returns the vector from the first member holding key.
func (u *UnionReader) Vector(key string) (vector.Vector, bool, error) {
	for _, r := range u.readers {
		v, ok, err := r.Vector(key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Scan visits members in order, reporting each key once.
func (u *UnionReader) Scan(fn func(key string, v vector.Vector) error) error {
	seen := make(map[string]struct{})
	for _, r := range u.readers {
		err := r.Scan(func(key string, v vector.Vector) error {
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}
			return fn(key, v)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes every member.
func (u *UnionReader) Close() error {
	var errs []error
	for _, r := range u.readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}
