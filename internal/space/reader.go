// Package space provides vector spaces: key to vector mappings that can be
// held in memory, streamed from a file, or unioned across files, together with
// the operations that combine, summarize and search them.
package space

import (
	"errors"
	"fmt"

	"github.com/munnellg/tri/internal/vector"
)

// Reader is a read-only vector space.
type Reader interface {
	// Dimension returns the dimension of every vector in the space.
	Dimension() int
	// Vector returns the vector stored under key, or false if the key is absent.
	// The returned vector must not be modified.
	Vector(key string) (vector.Vector, bool, error)
	// Scan calls fn for every entry in storage order and stops at the first
	// error fn returns. fn must not modify v; clone it to keep a mutable copy.
	Scan(fn func(key string, v vector.Vector) error) error
	// Close releases resources held by the reader.
	Close() error
}

// Mode selects how vector files are accessed.
type Mode string

const (
	// ModeMemory loads the whole file into memory.
	ModeMemory Mode = "memory"
	// ModeFile streams the file on every scan and keeps nothing resident.
	ModeFile Mode = "file"
)

// Open opens one or more vector files with the given access mode. A single
// path yields a memory or file reader; several paths yield a UnionReader over
// readers of that mode.
func Open(mode Mode, paths ...string) (Reader, error) {
	if len(paths) == 0 {
		return nil, errors.New("no vector files given")
	}
	if len(paths) == 1 {
		return openOne(mode, paths[0])
	}
	readers := make([]Reader, 0, len(paths))
	for _, p := range paths {
		r, err := openOne(mode, p)
		if err != nil {
			for _, opened := range readers {
				_ = opened.Close()
			}
			return nil, err
		}
		readers = append(readers, r)
	}
	u, err := NewUnionReader(readers...)
	if err != nil {
		for _, opened := range readers {
			_ = opened.Close()
		}
		return nil, err
	}
	return u, nil
}

func openOne(mode Mode, path string) (Reader, error) {
	switch mode {
	case ModeMemory, "":
		return LoadMemory(path)
	case ModeFile:
		return OpenFile(path)
	default:
		return nil, fmt.Errorf("unknown reader mode: %s (supported: memory, file)", mode)
	}
}

// Keys returns every key of r in scan order.
func Keys(r Reader) ([]string, error) {
	var keys []string
	err := r.Scan(func(key string, _ vector.Vector) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

// Count returns the number of vectors in r.
func Count(r Reader) (int, error) {
	if l, ok := r.(interface{ Len() int }); ok {
		return l.Len(), nil
	}
	n := 0
	err := r.Scan(func(string, vector.Vector) error {
		n++
		return nil
	})
	return n, err
}
