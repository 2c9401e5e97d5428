package space

import (
	"fmt"

	"github.com/munnellg/tri/internal/vector"
)

// merger sums vectors by key. The first vector seen for a key is copied, so
// the result never aliases an input.
type merger struct {
	dim int
	out map[string]vector.Vector
}

func (m *merger) add(key string, v vector.Vector) error {
	if m.dim == 0 {
		m.dim = len(v)
	}
	if len(v) != m.dim {
		return fmt.Errorf("%w: %q has %d, expected %d", ErrDimensionMismatch, key, len(v), m.dim)
	}
	if acc, ok := m.out[key]; ok {
		acc.Superpose(v, 1)
		return nil
	}
	m.out[key] = v.Clone()
	return nil
}

func (m *merger) normalized() map[string]vector.Vector {
	for _, v := range m.out {
		v.Normalize()
	}
	return m.out
}

// Combine sums the vectors sharing a key across spaces and normalizes every
// resulting vector. Inputs are not modified.
func Combine(spaces ...map[string]vector.Vector) (map[string]vector.Vector, error) {
	m := &merger{out: make(map[string]vector.Vector)}
	for _, s := range spaces {
		for k, v := range s {
			if err := m.add(k, v); err != nil {
				return nil, err
			}
		}
	}
	return m.normalized(), nil
}

// CombineReaders is Combine over readers.
func CombineReaders(readers ...Reader) (map[string]vector.Vector, error) {
	m := &merger{out: make(map[string]vector.Vector)}
	for _, r := range readers {
		if m.dim == 0 {
			m.dim = r.Dimension()
		}
		if r.Dimension() != m.dim {
			return nil, fmt.Errorf("%w: reader has %d, expected %d", ErrDimensionMismatch, r.Dimension(), m.dim)
		}
		if err := r.Scan(m.add); err != nil {
			return nil, err
		}
	}
	return m.normalized(), nil
}

// CombineToReader combines readers into an in-memory reader.
func CombineToReader(readers ...Reader) (*MemoryReader, error) {
	combined, err := CombineReaders(readers...)
	if err != nil {
		return nil, err
	}
	dim := 0
	if len(readers) > 0 {
		dim = readers[0].Dimension()
	}
	return NewMemoryReader(dim, combined)
}

// CombineToFile combines readers and writes the result to path. The file
// declares an unknown count and is only moved into place once complete.
func CombineToFile(path string, readers ...Reader) error {
	combined, err := CombineReaders(readers...)
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		return fmt.Errorf("combine into %s: no readers", path)
	}
	return WriteMap(path, readers[0].Dimension(), combined, UnknownCount)
}
