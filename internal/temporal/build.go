package temporal

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/munnellg/tri/internal/space"
	"github.com/munnellg/tri/internal/vector"
	"go.uber.org/zap"
)

// Window is an inclusive range of years.
type Window struct {
	Start, End int
}

// Windows splits [start, end] into consecutive windows of step years. The
// last window is cut short at end.
func Windows(start, end, step int) ([]Window, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %d", step)
	}
	if end < start {
		return nil, fmt.Errorf("end year %d before start year %d", end, start)
	}
	var ws []Window
	for y := start; y <= end; y += step {
		ws = append(ws, Window{Start: y, End: min(y+step-1, end)})
	}
	return ws, nil
}

// SpacePath returns the file for the window starting at year:
// <dir>/<prefix>_<year>.vectors.
func SpacePath(dir, prefix string, year int) string {
	return filepath.Join(dir, prefix+"_"+strconv.Itoa(year)+".vectors")
}

// WriteSpace writes the context vector of every dictionary term for w to path
// and returns the number written.
func (a *Accumulator) WriteSpace(ctx context.Context, path string, w Window) (int, error) {
	out, err := space.Create(path, a.Dimension(), space.UnknownCount)
	if err != nil {
		return 0, err
	}
	defer out.Abort()
	err = a.Scan(ctx, w.Start, w.End, func(term string, v vector.Vector) error {
		return out.Write(term, v)
	})
	if err != nil {
		return 0, err
	}
	if err := out.Commit(); err != nil {
		return 0, err
	}
	a.logger.Info("space written", zap.String("path", path), zap.Int("start", w.Start),
		zap.Int("end", w.End), zap.Int("vectors", out.Written()))
	return out.Written(), nil
}

// WriteElemental writes the elemental vector of every dictionary term to path.
func (a *Accumulator) WriteElemental(ctx context.Context, path string) (int, error) {
	out, err := space.Create(path, a.Dimension(), space.UnknownCount)
	if err != nil {
		return 0, err
	}
	defer out.Abort()
	if err := a.ScanElemental(ctx, out.Write); err != nil {
		return 0, err
	}
	if err := out.Commit(); err != nil {
		return 0, err
	}
	return out.Written(), nil
}
