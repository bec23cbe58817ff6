// Package gate implements named one-shot readiness gates.
//
// A gate starts closed. Open releases every current and future waiter and can
// be called any number of times. Keys must be declared when the Set is
// created; touching an undeclared key is a programming error and panics.
package gate

import (
	"context"
	"fmt"
	"sync"
)

// Common gate keys used by the build pipeline.
const (
	Prepare = "prepare"
	Image   = "image"
)

type gate struct {
	once sync.Once
	ch   chan struct{}
}

// Set is a fixed collection of named gates. The zero value is not usable.
type Set struct {
	gates map[string]*gate
}

// New declares the given keys, all initially closed.
func New(keys ...string) *Set {
	s := &Set{gates: make(map[string]*gate, len(keys))}
	for _, k := range keys {
		s.gates[k] = &gate{ch: make(chan struct{})}
	}
	return s
}

// NewOpen declares the given keys already opened. Used for nodes that are
// born ready.
func NewOpen(keys ...string) *Set {
	s := New(keys...)
	for _, k := range keys {
		s.Open(k)
	}
	return s
}

func (s *Set) get(key string) *gate {
	g, ok := s.gates[key]
	if !ok {
		panic(fmt.Sprintf("gate: undeclared key %q", key))
	}
	return g
}

// Open marks key as ready. It is idempotent.
func (s *Set) Open(key string) {
	g := s.get(key)
	g.once.Do(func() { close(g.ch) })
}

// Wait blocks until key is opened or ctx is done.
func (s *Set) Wait(ctx context.Context, key string) error {
	g := s.get(key)
	select {
	case <-g.ch:
		return nil
	default:
	}
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsOpen reports whether key has been opened.
func (s *Set) IsOpen(key string) bool {
	select {
	case <-s.get(key).ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when key opens.
func (s *Set) Done(key string) <-chan struct{} {
	return s.get(key).ch
}
