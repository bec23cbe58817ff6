package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSum_KnownDigest(t *testing.T) {
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Sum([]byte("hello")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func write(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustTree(t *testing.T, roots ...string) string {
	t.Helper()
	sum, err := Tree(roots)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	return sum
}

func TestTree_TracksVisibleChanges(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.md"), "one")
	write(t, filepath.Join(root, "sub", "b.md"), "two")
	base := mustTree(t, root)

	if again := mustTree(t, root); again != base {
		t.Fatal("digest not stable")
	}

	write(t, filepath.Join(root, ".git", "HEAD"), "ref")
	write(t, filepath.Join(root, "sub", ".draft.md"), "hidden")
	if got := mustTree(t, root); got != base {
		t.Error("hidden entries changed the digest")
	}

	write(t, filepath.Join(root, "sub", "b.md"), "three")
	if got := mustTree(t, root); got == base {
		t.Error("content edit not detected")
	}
}

func TestTree_RenameChangesDigest(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.md"), "x")
	before := mustTree(t, root)
	if err := os.Rename(filepath.Join(root, "a.md"), filepath.Join(root, "b.md")); err != nil {
		t.Fatal(err)
	}
	if mustTree(t, root) == before {
		t.Error("rename not detected")
	}
}

func TestTree_MissingRoot(t *testing.T) {
	if _, err := Tree([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing root")
	}
}
