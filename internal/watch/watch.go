// Package watch reruns work when input files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"interdiag/internal/logging"
)

// DefaultDebounce groups the burst of events an editor or simulation
// writer produces for one save.
const DefaultDebounce = 500 * time.Millisecond

// Option configures Files.
type Option func(*config)

type config struct {
	debounce time.Duration
	logger   logging.Logger
}

// WithDebounce sets the quiet period before fn runs.
func WithDebounce(d time.Duration) Option {
	return func(c *config) { c.debounce = d }
}

// WithLogger sets the logger for change and error events.
func WithLogger(l logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Files calls fn each time one of paths is written, created or replaced,
// until ctx is cancelled. Calls are serialized. A failing fn is logged and
// watching continues. Parent directories are watched so files replaced by
// rename keep being tracked.
func Files(ctx context.Context, paths []string, fn func(context.Context) error, opts ...Option) error {
	cfg := config{debounce: DefaultDebounce, logger: logging.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	watched := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		watched[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}
	cfg.logger.Info("watching inputs", "files", len(watched), "dirs", len(dirs))

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if _, ok := watched[filepath.Clean(ev.Name)]; !ok {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg.logger.Debug("input changed", "file", ev.Name, "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(cfg.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warn("watch error", "error", err)
		case <-fire:
			if err := fn(ctx); err != nil {
				cfg.logger.Error("re-run failed", "error", err)
			}
		}
	}
}
