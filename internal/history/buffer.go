package history

import "sync"

// DefaultCapacity matches the dashboard's rolling window.
const DefaultCapacity = 100

// Buffer is a Ring guarded for one writer and many readers.
type Buffer[T any] struct {
	mu   sync.RWMutex
	ring *Ring[T]
}

// NewBuffer returns a buffer holding at most capacity points.
func NewBuffer[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{ring: NewRing[T](capacity)}
}

// Append adds v, evicting the oldest point when full.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	b.ring.Push(v)
	b.mu.Unlock()
}

// Snapshot returns an independent copy, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ring.Snapshot()
}

// Len returns the number of stored points.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ring.Len()
}

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int {
	return b.ring.Cap()
}
