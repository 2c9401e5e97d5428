package space

import (
	"bytes"
	"io"
	"testing"

	"github.com/munnellg/tri/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader("-vectortype REAL -dimension 300 -count -1")
	require.NoError(t, err)
	assert.Equal(t, Header{Type: TypeReal, Dimension: 300, Count: UnknownCount}, h)

	h, err = ParseHeader("-dimension 20")
	require.NoError(t, err)
	assert.Equal(t, TypeReal, h.Type)
	assert.Equal(t, UnknownCount, h.Count)

	h, err = ParseHeader("-vectortype real -dimension 4 -count 7 -seedlength 10")
	require.NoError(t, err)
	assert.Equal(t, 7, h.Count)
}

func TestParseHeader_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"-dimension",
		"-dimension abc",
		"-vectortype BINARY -dimension 64",
		"-dimension 0",
	} {
		_, err := ParseHeader(s)
		assert.ErrorIs(t, err, ErrInvalidHeader, "header %q", s)
	}
}

func TestHeader_StringRoundTrip(t *testing.T) {
	h := Header{Type: TypeReal, Dimension: 12, Count: 3}
	got, err := ParseHeader(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestUTFAndVectorEncoding(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeUTF(&buf, "città"))
	v := vector.Vector{1.5, -2, 0, 3.25}
	scratch := make([]byte, 16)
	require.NoError(t, writeVector(&buf, v, scratch))

	// Big-endian length prefix in bytes, not runes.
	assert.Equal(t, []byte{0, 6}, buf.Bytes()[:2])

	s, err := readUTF(&buf)
	require.NoError(t, err)
	assert.Equal(t, "città", s)
	got, err := readVector(&buf, 4, scratch)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = readUTF(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadVector_Truncated(t *testing.T) {
	_, err := readVector(bytes.NewReader([]byte{0, 0}), 2, make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCompressionFor(t *testing.T) {
	assert.Equal(t, CompressionNone, CompressionFor("a/count_1900.vectors"))
	assert.Equal(t, CompressionZstd, CompressionFor("a/count_1900.vectors.zst"))
	assert.Equal(t, CompressionLZ4, CompressionFor("a/count_1900.vectors.lz4"))
}
