// Package watch rebuilds the site when its content roots change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/sowilo/internal/checksum"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// RebuildFunc runs one build. Its error is reported by the caller's own
// means; the watcher keeps running.
type RebuildFunc func(ctx context.Context) error

// Options configure a watcher.
type Options struct {
	Roots    []string
	Debounce time.Duration
	// Ignore lists paths whose events never trigger a rebuild, typically
	// the output directory when it lives below a root.
	Ignore []string
}

// Watch watches every directory below opts.Roots until ctx is cancelled.
// Bursts of events are debounced; once the burst settles the roots are
// checksummed and rebuild runs only if the snapshot changed since the last
// run. New directories are added to the watch list as they appear.
func Watch(ctx context.Context, opts Options, logger *slog.Logger, rebuild RebuildFunc) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ignore := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			ignore = append(ignore, abs)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range opts.Roots {
		if err := addDirsRecursive(w, root, ignore); err != nil {
			return err
		}
	}

	last, err := checksum.Tree(opts.Roots)
	if err != nil {
		return err
	}
	logger.Info("watcher: started", slog.Any("roots", opts.Roots))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
			fire = timer.C
		} else {
			timer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			sum, sumErr := checksum.Tree(opts.Roots)
			if sumErr != nil {
				logger.Warn("watcher: checksum failed", slog.String("error", sumErr.Error()))
				continue
			}
			if sum == last {
				logger.Debug("watcher: content unchanged")
				continue
			}
			last = sum
			if buildErr := rebuild(ctx); buildErr != nil {
				logger.Error("watcher: rebuild failed", slog.String("error", buildErr.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if skipped(ev.Name, ignore) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, ignore); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// skipped reports whether p is hidden or inside an ignored path.
func skipped(p string, ignore []string) bool {
	if strings.HasPrefix(filepath.Base(p), ".") {
		return true
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	for _, ig := range ignore {
		if abs == ig || strings.HasPrefix(abs, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and its visible subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipped(p, ignore) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
