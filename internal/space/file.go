package space

import (
	"errors"
	"fmt"
	"io"

	"github.com/munnellg/tri/internal/vector"
)

var errStopScan = errors.New("stop scan")

// FileReader streams a vector file. Nothing but the header is kept in memory:
// every Scan opens the file, reads it front to back and closes it, and Vector
// scans until it finds the key.
type FileReader struct {
	path   string
	header Header
}

// OpenFile validates the header of the vector file at path.
func OpenFile(path string) (*FileReader, error) {
	d, err := openDecoder(path)
	if err != nil {
		return nil, err
	}
	h := d.header
	if err := d.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	return &FileReader{path: path, header: h}, nil
}

// Header returns the file header.
func (f *FileReader) Header() Header { return f.header }

// Dimension returns the vector dimension.
func (f *FileReader) Dimension() int { return f.header.Dimension }

// Vector scans the file for key.
func (f *FileReader) Vector(key string) (vector.Vector, bool, error) {
	var found vector.Vector
	err := f.Scan(func(k string, v vector.Vector) error {
		if k == key {
			found = v
			return errStopScan
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return nil, false, err
	}
	return found, found != nil, nil
}

// Scan reads the file sequentially. Vectors passed to fn are freshly allocated.
func (f *FileReader) Scan(fn func(key string, v vector.Vector) error) error {
	d, err := openDecoder(f.path)
	if err != nil {
		return err
	}
	defer d.Close()
	for {
		key, v, err := d.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", f.path, err)
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
}

// Close is a no-op: file handles never outlive a Scan.
func (f *FileReader) Close() error { return nil }
