package space

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/munnellg/tri/internal/vector"
)

// MemoryReader is a vector space held entirely in memory.
type MemoryReader struct {
	dim     int
	keys    []string
	vectors map[string]vector.Vector
}

// NewMemoryReader wraps m as a reader. The map is used directly, not copied.
// Keys are scanned in sorted order.
func NewMemoryReader(dim int, m map[string]vector.Vector) (*MemoryReader, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %q has %d, space has %d", ErrDimensionMismatch, k, len(v), dim)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &MemoryReader{dim: dim, keys: keys, vectors: m}, nil
}

// LoadMemory reads the whole vector file at path. Entries keep file order.
// A later entry with a key seen before replaces the earlier vector.
func LoadMemory(path string) (*MemoryReader, error) {
	d, err := openDecoder(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	m := &MemoryReader{dim: d.header.Dimension, vectors: make(map[string]vector.Vector)}
	if d.header.Count > 0 {
		m.keys = make([]string, 0, d.header.Count)
	}
	read := 0
	for {
		key, v, err := d.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if _, dup := m.vectors[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.vectors[key] = v
		read++
	}
	if d.header.Count != UnknownCount && d.header.Count != read {
		return nil, fmt.Errorf("load %s: header declares %d vectors, found %d", path, d.header.Count, read)
	}
	return m, nil
}

// Dimension returns the vector dimension.
func (m *MemoryReader) Dimension() int { return m.dim }

// Len returns the number of vectors.
func (m *MemoryReader) Len() int { return len(m.keys) }

// Vector returns the vector for key.
func (m *MemoryReader) Vector(key string) (vector.Vector, bool, error) {
	v, ok := m.vectors[key]
	return v, ok, nil
}

// Scan visits every entry in key order.
func (m *MemoryReader) Scan(fn func(key string, v vector.Vector) error) error {
	for _, k := range m.keys {
		if err := fn(k, m.vectors[k]); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op for MemoryReader.
func (m *MemoryReader) Close() error { return nil }
