// Package testutil provides shared test helpers for content trees and
// hand-built node trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/sowilo/internal/gate"
	"github.com/starford/sowilo/internal/parser"
	"github.com/starford/sowilo/internal/storage"
	"github.com/starford/sowilo/internal/tree"
)

// ContentTree writes files (slash-separated relative path → content) under a
// fresh temporary directory and returns it.
func ContentTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// TestFS returns a storage provider with a generous descriptor budget.
func TestFS(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(256)
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// Doc returns a prepared Markdown node named <title>.md carrying tokens.
func Doc(title string, tokens ...string) *tree.Node {
	set := make(map[string]struct{}, len(tokens))
	for _, tk := range tokens {
		set[tk] = struct{}{}
	}
	n := tree.NewFile(title+".md", title+".html")
	d := tree.NewDocument(title, &parser.Result{}, time.Time{}, set)
	n.SetFile(tree.Markdown{Key: title, Doc: d})
	n.Gates().Open(gate.Prepare)
	return n
}

// Binary returns a prepared binary node.
func Binary(name string) *tree.Node {
	n := tree.NewFile(name, name)
	n.SetFile(tree.Binary{Key: name})
	n.Gates().Open(gate.Prepare)
	return n
}

// Dir returns a prepared directory Entry owning children.
func Dir(name string, children ...*tree.Node) *tree.Node {
	n := tree.NewDir(name, name)
	count := 0
	for _, c := range children {
		n.AddChild(c)
		if c.Kind() == tree.KindDir || c.Document() != nil {
			count++
		}
	}
	n.SetDir(tree.Entry{Key: name, ChildCount: count})
	n.Gates().Open(gate.Prepare)
	return n
}
