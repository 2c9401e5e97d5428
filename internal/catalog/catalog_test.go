package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/vector"
)

func writeSpace(t *testing.T, path string) {
	t.Helper()
	m := map[string]vector.Vector{"w": {1, 0}}
	if err := space.WriteMap(path, 2, m, 1); err != nil {
		t.Fatal(err)
	}
}

func populate(t *testing.T) string {
	dir := t.TempDir()
	for _, name := range []string{
		"count_1900.vectors",
		"count_1910.vectors.zst",
		"count_1920.vectors.lz4",
		"count_2000.vectors",
		ElementalFile,
	} {
		writeSpace(t, filepath.Join(dir, name))
	}
	if err := os.WriteFile(filepath.Join(dir, "notes_1930.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub_1940.vectors"), 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestScan(t *testing.T) {
	dir := populate(t)
	c, err := Scan(dir, 1900, 1950)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Years(); !reflect.DeepEqual(got, []int{1900, 1910, 1920}) {
		t.Errorf("Years() = %v", got)
	}
	p, ok := c.Path(1910)
	if !ok || p != filepath.Join(dir, "count_1910.vectors.zst") {
		t.Errorf("Path(1910) = %q %v", p, ok)
	}
	if _, ok := c.Path(2000); ok {
		t.Error("2000 is outside the range")
	}

	r, err := c.Reader(1920, space.ModeFile)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Dimension() != 2 {
		t.Errorf("Dimension() = %d", r.Dimension())
	}

	if _, err := c.Reader(1930, space.ModeMemory); !errors.Is(err, ErrUnknownYear) {
		t.Errorf("expected ErrUnknownYear, got %v", err)
	}
}

func TestScan_MissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "nope"), 0, 3000); err == nil {
		t.Error("expected error")
	}
}

func TestYearOf(t *testing.T) {
	tests := []struct {
		name string
		year int
		ok   bool
	}{
		{"count_1900.vectors", 1900, true},
		{"/a/b/1850-1859_x.vectors", 1850, true},
		{"v2_1900.vectors", 2, true},
		{"count.vectors", 0, false},
	}
	for _, tt := range tests {
		y, ok := YearOf(tt.name)
		if y != tt.year || ok != tt.ok {
			t.Errorf("YearOf(%q) = %d %v, want %d %v", tt.name, y, ok, tt.year, tt.ok)
		}
	}
}

func TestIsVectorFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a_1900.vectors":     true,
		"a_1900.vectors.zst": true,
		"a_1900.vectors.lz4": true,
		ElementalFile:        false,
		".a.vectors.tmp-123": false,
		"a.txt":              false,
	} {
		if got := IsVectorFile(name); got != want {
			t.Errorf("IsVectorFile(%q) = %v", name, got)
		}
	}
}

func TestFileRange(t *testing.T) {
	dir := populate(t)
	writeSpace(t, filepath.Join(dir, "nodate.vectors"))
	paths, err := FileRange(dir, 1905, 2000)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "count_1910.vectors.zst"),
		filepath.Join(dir, "count_1920.vectors.lz4"),
		filepath.Join(dir, "count_2000.vectors"),
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("FileRange = %v", paths)
	}
	if ElementalPath(dir) != filepath.Join(dir, "vectors.elemental") {
		t.Errorf("ElementalPath = %s", ElementalPath(dir))
	}
}

func TestElementalKeys(t *testing.T) {
	dir := t.TempDir()
	m := map[string]vector.Vector{"war": {1, 0}, "peace": {0, 1}, "treaty": {1, 1}}
	if err := space.WriteMap(ElementalPath(dir), 2, m, len(m)); err != nil {
		t.Fatal(err)
	}
	writeSpace(t, filepath.Join(dir, "count_1900.vectors"))
	c, err := Scan(dir, 0, 9999)
	if err != nil {
		t.Fatal(err)
	}
	for _, mode := range []space.Mode{space.ModeMemory, space.ModeFile} {
		keys, err := c.ElementalKeys(mode)
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		sort.Strings(keys)
		if want := []string{"peace", "treaty", "war"}; !reflect.DeepEqual(keys, want) {
			t.Errorf("%s: ElementalKeys = %v, want %v", mode, keys, want)
		}
	}
}

func TestElementalKeys_Missing(t *testing.T) {
	dir := t.TempDir()
	writeSpace(t, filepath.Join(dir, "count_1900.vectors"))
	c, err := Scan(dir, 0, 9999)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ElementalKeys(space.ModeMemory); err == nil {
		t.Error("expected an error without an elemental file")
	}
}

func TestWatch_RefreshesOnNewFile(t *testing.T) {
	dir := populate(t)
	c, err := Scan(dir, 1900, 1950)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var seen [][]int
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, WithDebounce(20*time.Millisecond), OnChange(func(years []int) {
			mu.Lock()
			seen = append(seen, years)
			mu.Unlock()
		}))
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	writeSpace(t, filepath.Join(dir, "count_1930.vectors"))

	refreshed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !refreshed() {
		time.Sleep(20 * time.Millisecond)
	}
	if !refreshed() {
		t.Fatalf("OnChange not called: %v", c.Years())
	}
	if _, ok := c.Path(1930); !ok {
		t.Errorf("catalog not refreshed: %v", c.Years())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not return after cancel")
	}
}
