package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	onChange func(years []int)
}

// WithDebounce sets how long the directory must be quiet before a refresh.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *watchConfig) { w.debounce = d }
}

// OnChange is called with the new year list after each refresh.
func OnChange(fn func(years []int)) WatchOption {
	return func(w *watchConfig) { w.onChange = fn }
}

// Watch refreshes the catalog whenever a vector file in its directory is
// created, removed or renamed. Bursts of events collapse into one refresh.
// It blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, opts ...WatchOption) error {
	cfg := watchConfig{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(&cfg)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(c.dir); err != nil {
		return err
	}
	c.logger.Debug("catalog watching", zap.String("dir", c.dir))

	var mu sync.Mutex
	var timer *time.Timer
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()
	refresh := func() {
		if err := c.Refresh(); err != nil {
			c.logger.Warn("catalog refresh failed", zap.Error(err))
			return
		}
		if cfg.onChange != nil {
			cfg.onChange(c.Years())
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !IsVectorFile(filepath.Base(ev.Name)) {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			c.logger.Debug("catalog event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cfg.debounce, refresh)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Debug("catalog watch error", zap.Error(err))
		}
	}
}
