// Package catalog maps years to the vector files of a directory of period spaces.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/munnellg/tri/internal/space"
	"go.uber.org/zap"
)

// ElementalFile is the name of the elemental vector file inside a space directory.
const ElementalFile = "vectors.elemental"

var (
	suffixes   = []string{".vectors", ".vectors.zst", ".vectors.zstd", ".vectors.lz4"}
	firstDigit = regexp.MustCompile(`[0-9]+`)
)

// ErrUnknownYear is returned when no vector file is catalogued for a year.
var ErrUnknownYear = errors.New("no vector file for year")

// Catalog is the set of period vector files of one directory whose year falls
// in [start, end]. It is safe for concurrent use; Refresh and Watch replace
// the mapping atomically.
type Catalog struct {
	dir        string
	start, end int
	mu         sync.RWMutex
	files      map[int]string
	logger     *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets a logger for refreshes and watch events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.logger = l }
}

// Scan catalogues the vector files in dir with a year in [start, end].
func Scan(dir string, start, end int, opts ...Option) (*Catalog, error) {
	c := &Catalog{dir: dir, start: start, end: end, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh rereads the directory.
func (c *Catalog) Refresh() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", c.dir, err)
	}
	files := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || !IsVectorFile(e.Name()) {
			continue
		}
		year, ok := YearOf(e.Name())
		if !ok || year < c.start || year > c.end {
			continue
		}
		// Several files for one year: keep the first in name order.
		if _, dup := files[year]; !dup {
			files[year] = filepath.Join(c.dir, e.Name())
		}
	}
	c.mu.Lock()
	c.files = files
	c.mu.Unlock()
	c.logger.Debug("catalog refreshed", zap.String("dir", c.dir), zap.Int("years", len(files)))
	return nil
}

// Dir returns the catalogued directory.
func (c *Catalog) Dir() string { return c.dir }

// Len returns the number of catalogued years.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Years returns the catalogued years in ascending order.
func (c *Catalog) Years() []int {
	c.mu.RLock()
	years := make([]int, 0, len(c.files))
	for y := range c.files {
		years = append(years, y)
	}
	c.mu.RUnlock()
	sort.Ints(years)
	return years
}

// Path returns the file catalogued for year.
func (c *Catalog) Path(year int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.files[year]
	return p, ok
}

// Reader opens the space of year with the given access mode.
func (c *Catalog) Reader(year int, mode space.Mode) (space.Reader, error) {
	p, ok := c.Path(year)
	if !ok {
		return nil, fmt.Errorf("%w %d in %s", ErrUnknownYear, year, c.dir)
	}
	return space.Open(mode, p)
}

// ElementalKeys returns the keys of the elemental file in the catalogued
// directory, which is every term a build wrote spaces for.
func (c *Catalog) ElementalKeys(mode space.Mode) ([]string, error) {
	r, err := space.Open(mode, ElementalPath(c.Dir()))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return space.Keys(r)
}

// IsVectorFile reports whether name has a vector file suffix. The elemental
// file does not.
func IsVectorFile(name string) bool {
	return trimSuffix(name) != name
}

func trimSuffix(name string) string {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return strings.TrimSuffix(name, s)
		}
	}
	return name
}

// YearOf returns the first run of digits in the base name of path.
func YearOf(path string) (int, bool) {
	m := firstDigit.FindString(filepath.Base(path))
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// ElementalPath returns the elemental vector file of dir.
func ElementalPath(dir string) string {
	return filepath.Join(dir, ElementalFile)
}

// FileRange returns the vector files of dir whose name ends in _<year> with
// year in [start, end], sorted by year. Files without such a suffix are skipped.
func FileRange(dir string, start, end int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	type dated struct {
		year int
		path string
	}
	var found []dated
	for _, e := range entries {
		if e.IsDir() || !IsVectorFile(e.Name()) {
			continue
		}
		base := trimSuffix(e.Name())
		year, err := strconv.Atoi(base[strings.LastIndex(base, "_")+1:])
		if err != nil || year < start || year > end {
			continue
		}
		found = append(found, dated{year: year, path: filepath.Join(dir, e.Name())})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].year < found[j].year })
	paths := make([]string, len(found))
	for i, d := range found {
		paths[i] = d.path
	}
	return paths, nil
}
