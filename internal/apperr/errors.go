// Package apperr holds the error kinds shared across the build pipeline.
package apperr

import "errors"

var (
	// ErrNotReady marks a read of a node field before the stage that owns it ran.
	ErrNotReady = errors.New("not ready")
	// ErrParse marks malformed front-matter, dates or markdown.
	ErrParse = errors.New("parse error")
	// ErrTool marks a failing external tokenizer worker.
	ErrTool = errors.New("tool error")

	ErrPoolExhausted = errors.New("pool exhausted")
	ErrPoolClosed    = errors.New("pool closed")
)
