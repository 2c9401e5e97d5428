package space

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/munnellg/tri/internal/vector"
	"github.com/pierrec/lz4/v4"
)

// TypeReal is the only vector type tag this package reads and writes.
const TypeReal = "REAL"

// UnknownCount is the header count written when the number of vectors is not
// known up front.
const UnknownCount = -1

const maxUTFLen = math.MaxUint16

var (
	// ErrInvalidHeader is returned for a header that cannot be parsed or
	// describes an unsupported vector type.
	ErrInvalidHeader = errors.New("invalid vector store header")
	// ErrDimensionMismatch is returned when vectors of different dimensions are mixed.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Header is the first record of a vector file.
type Header struct {
	Type      string
	Dimension int
	Count     int
}

// String renders the header the way it is stored on disk.
func (h Header) String() string {
	return fmt.Sprintf("-vectortype %s -dimension %d -count %d", h.Type, h.Dimension, h.Count)
}

// ParseHeader parses a stored header. A missing -count means UnknownCount and a
// missing -vectortype means TypeReal.
func ParseHeader(s string) (Header, error) {
	h := Header{Type: TypeReal, Count: UnknownCount}
	fields := strings.Fields(s)
	if len(fields)%2 != 0 {
		return h, fmt.Errorf("%w: %q", ErrInvalidHeader, s)
	}
	for i := 0; i < len(fields); i += 2 {
		name, value := fields[i], fields[i+1]
		switch name {
		case "-vectortype":
			h.Type = strings.ToUpper(value)
		case "-dimension", "-count":
			n, err := strconv.Atoi(value)
			if err != nil {
				return h, fmt.Errorf("%w: %s %q", ErrInvalidHeader, name, value)
			}
			if name == "-dimension" {
				h.Dimension = n
			} else {
				h.Count = n
			}
		default:
			// Unknown options are ignored so newer writers stay readable.
		}
	}
	if h.Type != TypeReal {
		return h, fmt.Errorf("%w: unsupported vector type %s", ErrInvalidHeader, h.Type)
	}
	if h.Dimension <= 0 {
		return h, fmt.Errorf("%w: dimension %d", ErrInvalidHeader, h.Dimension)
	}
	return h, nil
}

// writeUTF writes s as a big-endian uint16 byte length followed by its UTF-8 bytes.
func writeUTF(w io.Writer, s string) error {
	if len(s) > maxUTFLen {
		return fmt.Errorf("string of %d bytes exceeds %d", len(s), maxUTFLen)
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readUTF(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", unexpected(err)
	}
	return string(buf), nil
}

// writeVector writes the coordinates of v as big-endian IEEE-754 float32 values.
// buf must hold at least 4*len(v) bytes.
func writeVector(w io.Writer, v vector.Vector, buf []byte) error {
	b := buf[:4*len(v)]
	for i, x := range v {
		binary.BigEndian.PutUint32(b[i*4:], math.Float32bits(x))
	}
	_, err := w.Write(b)
	return err
}

func readVector(r io.Reader, dim int, buf []byte) (vector.Vector, error) {
	b := buf[:4*dim]
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, unexpected(err)
	}
	v := make(vector.Vector, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// unexpected turns a clean EOF in the middle of a record into ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Compression is selected from the file name suffix.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

// CompressionFor returns the compression implied by path.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressWriter(c Compression, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("create zstd writer: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nopWriteCloser{w}, nil
	}
}

func decompressReader(c Compression, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}
