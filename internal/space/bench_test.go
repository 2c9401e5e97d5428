package space

import (
	"strconv"
	"testing"

	"github.com/munnellg/tri/internal/vector"
)

func benchSpace(b *testing.B, n int) *MemoryReader {
	b.Helper()
	gen, err := vector.NewGenerator(500, 10, vector.DefaultNonZero)
	if err != nil {
		b.Fatal(err)
	}
	m := make(map[string]vector.Vector, n)
	for i := 0; i < n; i++ {
		v := gen.Generate(i)
		v.Superpose(gen.Generate(i+1), 1)
		v.Normalize()
		m["k"+strconv.Itoa(i)] = v
	}
	r, err := NewMemoryReader(500, m)
	if err != nil {
		b.Fatal(err)
	}
	return r
}

func BenchmarkNearestToKey(b *testing.B) {
	r := benchSpace(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = NearestToKey(r, "k42", 10)
	}
}

func BenchmarkCombineReaders(b *testing.B) {
	r1, r2 := benchSpace(b, 2000), benchSpace(b, 2000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = CombineReaders(r1, r2)
	}
}
