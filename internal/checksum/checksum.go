// Package checksum computes content digests for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Tree returns one digest over every visible file below roots: the root
// index, the slash-separated relative path and the content of each file,
// in walk order. Hidden entries below a root are skipped, the same way
// the site tree skips them.
func Tree(roots []string) (string, error) {
	h := sha256.New()
	for i, root := range roots {
		root = filepath.Clean(root)
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(h, "%d\x00%s\x00", i, filepath.ToSlash(rel))
			if d.IsDir() {
				return nil
			}
			return hashFile(h, p)
		})
		if err != nil {
			return "", fmt.Errorf("checksum: walk %s: %w", root, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.Copy(w, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\x00%d\x00", n)
	return nil
}
