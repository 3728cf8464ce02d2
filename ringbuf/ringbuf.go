// Package ringbuf provides a fixed-capacity circular buffer.
package ringbuf

import "iter"

// CircularBuffer keeps the last Cap() values pushed into it. Pushing into a
// full buffer overwrites the oldest value.
type CircularBuffer[T any] struct {
	items []T
	start int
	size  int
}

// New creates a buffer holding up to capacity values. Panics if capacity
// is not positive.
func New[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &CircularBuffer[T]{items: make([]T, capacity)}
}

// Push appends v and returns the value it evicted, if any.
func (b *CircularBuffer[T]) Push(v T) (evicted T, ok bool) {
	if b.size == len(b.items) {
		evicted = b.items[b.start]
		b.items[b.start] = v
		b.start = (b.start + 1) % len(b.items)
		return evicted, true
	}
	b.items[(b.start+b.size)%len(b.items)] = v
	b.size++
	return evicted, false
}

// At returns the i-th oldest value. Panics if i is out of range.
func (b *CircularBuffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.items[(b.start+i)%len(b.items)]
}

// Newest returns the most recently pushed value.
func (b *CircularBuffer[T]) Newest() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.At(b.size - 1), true
}

func (b *CircularBuffer[T]) Len() int { return b.size }
func (b *CircularBuffer[T]) Cap() int { return len(b.items) }
func (b *CircularBuffer[T]) Full() bool { return b.size == len(b.items) }

// Clear empties the buffer.
func (b *CircularBuffer[T]) Clear() {
	clear(b.items)
	b.start, b.size = 0, 0
}

// All yields the values oldest first.
func (b *CircularBuffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < b.size; i++ {
			if !yield(b.items[(b.start+i)%len(b.items)]) {
				return
			}
		}
	}
}

// Slice copies the values out, oldest first.
func (b *CircularBuffer[T]) Slice() []T {
	out := make([]T, 0, b.size)
	for v := range b.All() {
		out = append(out, v)
	}
	return out
}
