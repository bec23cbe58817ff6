// Package storage is the bounded file-system layer used by every build stage
// above the tree walk.
package storage

import "context"

// Provider is the interface for output and content file operations. Every
// method that opens an OS handle holds a permit from the shared budget for
// the duration of the call.
type Provider interface {
	// ReadFile returns the bytes of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile atomically replaces path with data, creating parent dirs.
	WriteFile(ctx context.Context, path string, data []byte) error
	// CopyFile copies the regular file from into to.
	CopyFile(ctx context.Context, from, to string) error
	// CopyTree copies a file or a directory tree into dest. When from is a
	// file it lands at dest/<name>.
	CopyTree(ctx context.Context, from, dest string, dotfiles bool) error
	// RemoveContents deletes every entry directly under dir.
	RemoveContents(ctx context.Context, dir string, removeHidden bool) error
	// MkdirAll creates dir and its parents.
	MkdirAll(ctx context.Context, dir string) error
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
