package stats

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/storage"
	"github.com/munnellg/tri/internal/temporal"
	"github.com/munnellg/tri/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func periods() map[int]map[string]vector.Vector {
	return map[int]map[string]vector.Vector{
		1900: {"stable": {1, 0}, "drift": {1, 0}},
		1910: {"stable": {1, 0}, "drift": {0, 1}},
		1920: {"stable": {1, 0}, "late": {0, 1}},
	}
}

func opener(t *testing.T) Opener {
	return func(year int) (space.Reader, error) {
		m, ok := periods()[year]
		if !ok {
			return nil, fmt.Errorf("no year %d", year)
		}
		return space.NewMemoryReader(2, m)
	}
}

func TestCompute_Pointwise(t *testing.T) {
	tbl, err := Compute([]string{"stable", "drift", "late"}, []int{1900, 1910, 1920}, opener(t), Pointwise)
	require.NoError(t, err)

	assert.Equal(t, []string{"1900", "1910", "1920"}, tbl.Labels)
	assert.InDeltaSlice(t, []float64{0, 1, 1}, tbl.Row(0), 1e-9)
	// drift turns orthogonal in 1910 and is absent in 1920.
	assert.InDeltaSlice(t, []float64{0, 0, 0}, tbl.Row(1), 1e-9)
	// late first appears in 1920.
	assert.InDeltaSlice(t, []float64{0, 0, 0}, tbl.Row(2), 1e-9)
}

func TestCompute_Cumulative(t *testing.T) {
	tbl, err := Compute([]string{"stable", "drift"}, []int{1900, 1910, 1920}, opener(t), Cumulative)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0, 1, 1}, tbl.Row(0), 1e-6)
	// normalize((0,1) + (1,0)) against (1,0).
	assert.InDelta(t, 1/math.Sqrt2, tbl.Row(1)[1], 1e-6)
	assert.Equal(t, 0.0, tbl.Row(1)[2])
}

func TestCompute_OpenError(t *testing.T) {
	_, err := Compute([]string{"stable"}, []int{1900, 1950}, opener(t), Pointwise)
	assert.Error(t, err)
}

func TestTable_Clamp(t *testing.T) {
	tbl := &Table{Keys: []string{"a"}, Values: [][]float64{{-0.5, 0.0005, 0.2}}}
	tbl.Clamp(0.001)
	assert.Equal(t, []float64{0, 0, 0.2}, tbl.Row(0))
}

func sampleTable() *Table {
	return &Table{
		Labels: []string{"1900", "1910"},
		Keys:   []string{"alpha", "beta"},
		Values: [][]float64{{0, 0.5}, {0, 0.25}},
	}
}

func TestWrite_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleTable(), Plain))
	assert.Equal(t, "alpha\t0\t0.5\nbeta\t0\t0.25\n", buf.String())
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleTable(), CSV))
	assert.Equal(t, ",word,1900,1910\n0,alpha,0,0.5\n1,beta,0,0.25\n", buf.String())
}

func TestSave_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sims.xlsx")
	require.NoError(t, Save(path, sampleTable(), XLSX))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"", "word", "1900", "1910"}, rows[0])
	assert.Equal(t, "alpha", rows[1][1])
	assert.Equal(t, "0.25", rows[2][3])
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sims.txt")
	require.NoError(t, Save(path, sampleTable(), Plain))
	assert.Error(t, Save(filepath.Join(dir, "bad.txt"), sampleTable(), Format("json")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sims.txt", entries[0].Name())
}

func TestParseModeAndFormat(t *testing.T) {
	m, err := ParseMode("point")
	require.NoError(t, err)
	assert.Equal(t, Pointwise, m)
	_, err = ParseMode("avg")
	assert.Error(t, err)

	f, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	_, err = ParseFormat("json")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	tbl := &Table{
		Labels: []string{"1900", "1910", "1920", "1930"},
		Keys:   []string{"a", "b", "c"},
		Values: [][]float64{{0, 0.9, 0.3, 0.6}, {0, 0.4}, {0}},
	}
	s := Summarize(tbl)
	require.Len(t, s, 3)
	assert.InDelta(t, 0.6, s[0].Mean, 1e-9)
	assert.InDelta(t, 0.3, s[0].StdDev, 1e-9)
	assert.Equal(t, 0.3, s[0].Lowest)
	assert.Equal(t, "1920", s[0].LowestLabel)
	assert.InDelta(t, 0.4, s[1].Mean, 1e-9)
	assert.Equal(t, 0.0, s[1].StdDev)
	assert.Equal(t, Summary{Key: "c"}, s[2])
}

func TestSample(t *testing.T) {
	terms := []string{"a", "b", "c", "d", "e", "f"}
	assert.Equal(t, terms, Sample(terms, 10, 1))
	assert.Equal(t, terms, Sample(terms, 0, 1))

	got := Sample(terms, 3, 10)
	require.Len(t, got, 3)
	assert.Equal(t, got, Sample(terms, 3, 10))
	pos := map[string]int{}
	for i, s := range terms {
		pos[s] = i
	}
	for i := 1; i < len(got); i++ {
		assert.Less(t, pos[got[i-1]], pos[got[i]])
	}
}

func TestReadTerms(t *testing.T) {
	terms, err := ReadTerms(strings.NewReader("apple\n\n  pear \napple\nfig\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "pear", "fig"}, terms)
}

func TestParseYears(t *testing.T) {
	ws, err := ParseYears("1900:1929:10")
	require.NoError(t, err)
	assert.Equal(t, []temporal.Window{{Start: 1900, End: 1909}, {Start: 1910, End: 1919}, {Start: 1920, End: 1929}}, ws)

	ws, err = ParseYears("2000:2001")
	require.NoError(t, err)
	assert.Len(t, ws, 2)

	for _, bad := range []string{"2000", "a:b", "1:2:3:4", "2000:1990:1"} {
		_, err := ParseYears(bad)
		assert.Error(t, err, bad)
	}
}

func TestBatch_Run(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "tri.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	corpus := "a\tx\t2000\t3\n" +
		"a\tx\t2001\t3\n" +
		"b\tx\t2000\t1\n" +
		"b\ty\t2001\t1\n"
	_, err = store.Import(ctx, strings.NewReader(corpus))
	require.NoError(t, err)

	gen, err := vector.NewGenerator(500, 10, vector.DefaultNonZero)
	require.NoError(t, err)
	acc, err := temporal.New(store, vector.NewElementalCache(gen))
	require.NoError(t, err)

	ws, err := ParseYears("2000:2001:1")
	require.NoError(t, err)
	b := &Batch{Accumulator: acc, Windows: ws, Mode: Pointwise, Threshold: DefaultThreshold, Samples: DefaultSamples, Seed: 10}
	tbl, err := b.Run(ctx, []string{"a", "b", "unknown"})
	require.NoError(t, err)

	assert.Equal(t, []string{"2000", "2001"}, tbl.Labels)
	// a keeps the same context; b moves to an unrelated neighbor.
	assert.InDelta(t, 1.0, tbl.Row(0)[1], 1e-6)
	assert.Less(t, tbl.Row(1)[1], 0.5)
	assert.Equal(t, []float64{0, 0}, tbl.Row(2))
}
