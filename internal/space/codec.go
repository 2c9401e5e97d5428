package space

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/munnellg/tri/internal/vector"
)

// decoder reads a vector file front to back.
type decoder struct {
	f      *os.File
	rc     io.ReadCloser
	r      *bufio.Reader
	header Header
	buf    []byte
}

func openDecoder(path string) (*decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	rc, err := decompressReader(CompressionFor(path), f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	d := &decoder{f: f, rc: rc, r: bufio.NewReader(rc)}
	raw, err := readUTF(d.r)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("read header of %s: %w", path, unexpected(err))
	}
	h, err := ParseHeader(raw)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.header = h
	d.buf = make([]byte, 4*h.Dimension)
	return d, nil
}

// next returns the next entry, or io.EOF after the last one.
func (d *decoder) next() (string, vector.Vector, error) {
	key, err := readUTF(d.r)
	if err != nil {
		return "", nil, err
	}
	v, err := readVector(d.r, d.header.Dimension, d.buf)
	if err != nil {
		return "", nil, fmt.Errorf("read vector %q: %w", key, err)
	}
	return key, v, nil
}

func (d *decoder) Close() error {
	return errors.Join(d.rc.Close(), d.f.Close())
}

// Writer writes a vector file. Output goes to a temporary file next to the
// destination and only replaces the destination on Commit, so a failed write
// never leaves a partial file behind.
type Writer struct {
	path      string
	tmp       *os.File
	comp      io.WriteCloser
	w         *bufio.Writer
	dim       int
	buf       []byte
	written   int
	finalized bool
}

// Create starts a vector file at path with the given dimension and declared
// count (UnknownCount when not known). Compression follows the path suffix.
func Create(path string, dim, count int) (*Writer, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create vector file: %w", err)
	}
	comp, err := compressWriter(CompressionFor(path), tmp)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	w := &Writer{
		path: path,
		tmp:  tmp,
		comp: comp,
		w:    bufio.NewWriter(comp),
		dim:  dim,
		buf:  make([]byte, 4*dim),
	}
	header := Header{Type: TypeReal, Dimension: dim, Count: count}
	if err := writeUTF(w.w, header.String()); err != nil {
		_ = w.Abort()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return w, nil
}

// Write appends one entry.
func (w *Writer) Write(key string, v vector.Vector) error {
	if w.finalized {
		return errors.New("vector writer already finalized")
	}
	if len(v) != w.dim {
		return fmt.Errorf("%w: %q has %d, file has %d", ErrDimensionMismatch, key, len(v), w.dim)
	}
	if err := writeUTF(w.w, key); err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	if err := writeVector(w.w, v, w.buf); err != nil {
		return fmt.Errorf("write vector %q: %w", key, err)
	}
	w.written++
	return nil
}

// Written returns the number of entries written so far.
func (w *Writer) Written() int { return w.written }

// Commit flushes all buffered data and moves the file into place.
func (w *Writer) Commit() error {
	if w.finalized {
		return errors.New("vector writer already finalized")
	}
	w.finalized = true
	name := w.tmp.Name()
	err := w.w.Flush()
	if err == nil {
		err = w.comp.Close()
	}
	if err == nil {
		err = w.tmp.Sync()
	}
	if cerr := w.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, w.path)
	}
	if err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("finalize %s: %w", w.path, err)
	}
	return nil
}

// Abort discards everything written. It is safe to call after Commit, which
// makes `defer w.Abort()` the usual pattern.
func (w *Writer) Abort() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	_ = w.comp.Close()
	_ = w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

// WriteMap writes every vector of m to path in key order.
func WriteMap(path string, dim int, m map[string]vector.Vector, count int) error {
	w, err := Create(path, dim, count)
	if err != nil {
		return err
	}
	defer w.Abort()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.Write(k, m[k]); err != nil {
			return err
		}
	}
	return w.Commit()
}

// Save writes every vector of r to path, preserving scan order.
func Save(path string, r Reader) error {
	count := UnknownCount
	if l, ok := r.(interface{ Len() int }); ok {
		count = l.Len()
	}
	w, err := Create(path, r.Dimension(), count)
	if err != nil {
		return err
	}
	defer w.Abort()
	if err := r.Scan(w.Write); err != nil {
		return err
	}
	return w.Commit()
}
