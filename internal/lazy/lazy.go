// Package lazy provides lazy loading utilities
package lazy

import (
	"context"
	"sync"
)

// Loader function signature for lazy loading
type Loader[T any] func(ctx context.Context) (T, error)

// Lazy represents a lazy-loaded value. The loader runs at most once until
// Reset, and its error is cached along with the value.
type Lazy[T any] struct {
	loader Loader[T]
	value  T
	err    error
	loaded bool
	mutex  sync.Mutex
}

// New creates a new lazy value with a loader function
func New[T any](loader Loader[T]) *Lazy[T] {
	return &Lazy[T]{
		loader: loader,
	}
}

// Value returns a Lazy that is already loaded with v
func Value[T any](v T) *Lazy[T] {
	return &Lazy[T]{value: v, loaded: true}
}

// Get returns the value, loading it if necessary
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.loaded {
		l.value, l.err = l.loader(ctx)
		l.loaded = true
	}

	return l.value, l.err
}

// IfLoaded returns the value without triggering the loader. ok is false
// when nothing was loaded or loading failed.
func (l *Lazy[T]) IfLoaded() (value T, ok bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.loaded || l.err != nil {
		var zero T
		return zero, false
	}
	return l.value, true
}

// IsLoaded returns true if the value has been loaded
func (l *Lazy[T]) IsLoaded() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.loaded
}

// Reset clears the cached value, forcing reload on next Get
func (l *Lazy[T]) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var zero T
	l.value = zero
	l.err = nil
	l.loaded = false
}
