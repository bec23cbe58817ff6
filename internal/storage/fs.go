package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"
	"golang.org/x/sync/semaphore"
)

// Margin is the number of descriptors left for the runtime, logging and
// anything else not routed through FS.
const Margin = 20

// copyHandles is the number of permits a copy holds: source and destination.
const copyHandles = 2

// FS implements Provider on the local file system behind a counting permit
// pool sized to the configured descriptor budget.
type FS struct {
	sem   *semaphore.Weighted
	limit int64

	inUse atomic.Int64
	peak  atomic.Int64
}

// NewFS creates a provider allowing openFileLimit-Margin concurrent handles.
func NewFS(openFileLimit int) (*FS, error) {
	limit := int64(openFileLimit) - Margin
	if limit < copyHandles {
		return nil, fmt.Errorf("storage: open file limit %d must be at least %d", openFileLimit, Margin+copyHandles)
	}
	return &FS{sem: semaphore.NewWeighted(limit), limit: limit}, nil
}

// Limit returns the number of permits in the pool.
func (f *FS) Limit() int64 { return f.limit }

// Peak returns the highest number of permits held at once so far.
func (f *FS) Peak() int64 { return f.peak.Load() }

func (f *FS) acquire(ctx context.Context, n int64) (func(), error) {
	if err := f.sem.Acquire(ctx, n); err != nil {
		return nil, fmt.Errorf("storage: acquire permit: %w", err)
	}
	cur := f.inUse.Add(n)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	return func() {
		f.inUse.Add(-n)
		f.sem.Release(n)
	}, nil
}

// ReadFile returns the raw bytes of path.
func (f *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	release, err := f.acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile atomically writes data: tmp file → fsync → rename.
func (f *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	release, err := f.acquire(ctx, 1)
	if err != nil {
		return err
	}
	defer release()

	if err := natomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// CopyFile copies bytes verbatim from one regular file to another.
func (f *FS) CopyFile(ctx context.Context, from, to string) error {
	release, err := f.acquire(ctx, copyHandles)
	if err != nil {
		return err
	}
	defer release()

	return copyFile(from, to)
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", from, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", from, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("storage: copy %s: not a regular file", from)
	}

	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", to, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("storage: copy %s: %w", from, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", to, err)
	}
	return nil
}

// CopyTree copies from into dest breadth first. Permits are taken per
// directory listing and per file copy, never nested.
func (f *FS) CopyTree(ctx context.Context, from, dest string, dotfiles bool) error {
	info, err := os.Stat(from)
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", from, err)
	}
	if !info.IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir: %w", err)
		}
		return f.CopyFile(ctx, from, filepath.Join(dest, filepath.Base(from)))
	}

	type pair struct{ src, dst string }
	queue := []pair{{from, dest}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if err := os.MkdirAll(cur.dst, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir: %w", err)
		}
		entries, err := f.readDir(ctx, cur.src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !dotfiles && isHidden(e.Name()) {
				continue
			}
			src := filepath.Join(cur.src, e.Name())
			dst := filepath.Join(cur.dst, e.Name())
			if e.IsDir() {
				queue = append(queue, pair{src, dst})
				continue
			}
			if err := f.CopyFile(ctx, src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveContents deletes the entries directly under dir, keeping hidden
// ones unless removeHidden is set. A missing dir is not an error.
func (f *FS) RemoveContents(ctx context.Context, dir string, removeHidden bool) error {
	entries, err := f.readDir(ctx, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if !removeHidden && isHidden(e.Name()) {
			continue
		}
		if err := f.remove(ctx, filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// MkdirAll creates dir and any missing parents.
func (f *FS) MkdirAll(_ context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	return nil
}

func (f *FS) readDir(ctx context.Context, dir string) ([]os.DirEntry, error) {
	release, err := f.acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: read dir %s: %w", dir, err)
	}
	return entries, nil
}

func (f *FS) remove(ctx context.Context, path string) error {
	release, err := f.acquire(ctx, 1)
	if err != nil {
		return err
	}
	defer release()

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("storage: remove %s: %w", path, err)
	}
	return nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
