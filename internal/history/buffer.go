// Package history keeps a bounded, insertion-ordered window of recent items.
package history

import "sync"

// DefaultCapacity is used when a buffer is created with a non-positive capacity.
const DefaultCapacity = 100

// Buffer is a fixed-capacity ring that drops its oldest item when full.
// One goroutine is expected to Push; any number may read concurrently.
type Buffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // next write position
	size     int
	evicted  uint64
	capacity int
}

// New creates a buffer holding at most capacity items.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Push appends item, evicting the oldest entry once the buffer is full.
func (b *Buffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == b.capacity {
		// head points at the oldest item when full, so it gets overwritten
		b.evicted++
	} else {
		b.size++
	}
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
}

// Snapshot returns a copy of the contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, 0, b.size)
	start := (b.head - b.size + b.capacity) % b.capacity
	for i := 0; i < b.size; i++ {
		out = append(out, b.items[(start+i)%b.capacity])
	}
	return out
}

// Len returns the number of items held.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the capacity.
func (b *Buffer[T]) Cap() int { return b.capacity }

// Evicted returns how many items have been pushed out so far.
func (b *Buffer[T]) Evicted() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.evicted
}
