package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type counter struct{ n atomic.Int32 }

func (c *counter) rebuild(context.Context) error {
	c.n.Add(1)
	return nil
}

func start(t *testing.T, opts Options, c *counter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, opts, quietLogger(), c.rebuild) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	})
	time.Sleep(100 * time.Millisecond)
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	var c counter
	start(t, Options{Roots: []string{root}, Debounce: 20 * time.Millisecond}, &c)

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return c.n.Load() == 1
	}, "rebuild not triggered by new file")
}

func TestWatch_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	var c counter
	start(t, Options{Roots: []string{root}, Debounce: 20 * time.Millisecond}, &c)

	sub := filepath.Join(root, "sub")
	_ = os.MkdirAll(sub, 0o755)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return c.n.Load() == 1
	}, "rebuild not triggered by new dir")

	_ = os.WriteFile(filepath.Join(sub, "deep.md"), []byte("# Deep"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return c.n.Load() == 2
	}, "file in new dir not seen")
}

func TestWatch_SkipsUnchangedContent(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "same.md")
	_ = os.WriteFile(p, []byte("# Same"), 0o644)

	var c counter
	start(t, Options{Roots: []string{root}, Debounce: 20 * time.Millisecond}, &c)

	_ = os.WriteFile(p, []byte("# Same"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if n := c.n.Load(); n != 0 {
		t.Errorf("rebuilds = %d, want 0 for identical content", n)
	}
}

func TestWatch_IgnoresOutputDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "public")
	_ = os.MkdirAll(out, 0o755)

	var c counter
	start(t, Options{Roots: []string{root}, Debounce: 20 * time.Millisecond, Ignore: []string{out}}, &c)

	_ = os.WriteFile(filepath.Join(out, "index.html"), []byte("<html>"), 0o644)
	time.Sleep(300 * time.Millisecond)
	if n := c.n.Load(); n != 0 {
		t.Errorf("rebuilds = %d, want 0 for ignored path", n)
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	err := Watch(context.Background(), Options{Roots: []string{filepath.Join(t.TempDir(), "missing")}}, quietLogger(), func(context.Context) error { return nil })
	if err == nil {
		t.Error("expected error for missing root")
	}
}
