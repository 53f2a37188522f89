package util

import (
	"context"
	"sync"
)

// Cell is a write-once, read-many slot. It models the one-shot
// "fillable" identity/state slots (ssrc, secret key, spawned task
// handles) passed between goroutines in the voice stack: exactly one
// writer calls Set, any number of readers may Wait for the value or
// for the surrounding context to be cancelled.
type Cell[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
}

// NewCell creates an empty Cell.
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{done: make(chan struct{})}
}

// Set fills the cell. Only the first call has any effect; subsequent
// calls are no-ops, enforcing single-writer semantics.
func (c *Cell[T]) Set(v T) {
	c.once.Do(func() {
		c.val = v
		close(c.done)
	})
}

// Wait blocks until the cell is filled or ctx is cancelled, whichever
// happens first. ok is false if ctx was cancelled first.
func (c *Cell[T]) Wait(ctx context.Context) (v T, ok bool) {
	select {
	case <-c.done:
		return c.val, true
	case <-ctx.Done():
		return v, false
	}
}

// TryGet returns the cell's value without blocking, and whether it
// has been filled yet.
func (c *Cell[T]) TryGet() (v T, ok bool) {
	select {
	case <-c.done:
		return c.val, true
	default:
		return v, false
	}
}
