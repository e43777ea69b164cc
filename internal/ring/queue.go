// Package ring implements a fixed-capacity circular queue addressed by
// monotonic cursors. Memory is allocated only at construction time; the
// backing array is reused in place for the queue's entire lifetime.
package ring

import (
	"errors"
	"math/bits"
)

var (
	// ErrFull is returned by Push when the queue holds Cap items.
	ErrFull = errors.New("ring: queue full")
	// ErrEmpty is returned by Pop when the queue holds no items.
	ErrEmpty = errors.New("ring: queue empty")
)

// Queue is a bounded FIFO queue over a pre-allocated backing slice.
//
// The in and out cursors only ever increase; 0 <= in-out <= capacity holds
// at all times. The backing array is rounded up to a power of two and
// slots are addressed by cursor & mask. Because the array length divides
// 2^64, the position-to-slot map stays continuous when a cursor overflows:
// wraparound is well-defined unsigned arithmetic, not a special case.
//
// Queue performs no locking of its own. Concurrent users must serialize
// access with their own mutex or equivalent.
type Queue[T any] struct {
	slots    []T
	mask     uint64
	capacity uint64
	in       uint64
	out      uint64
}

// New creates a queue with the given fixed capacity. Panics if capacity
// is not positive; queue sizes come from validated configuration.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("ring: capacity must be > 0")
	}
	size := uint64(1) << bits.Len64(uint64(capacity)-1)
	return &Queue[T]{
		slots:    make([]T, size),
		mask:     size - 1,
		capacity: uint64(capacity),
	}
}

// Push appends item to the queue. Returns ErrFull if the queue already
// holds Cap items; the queue is unchanged in that case.
func (q *Queue[T]) Push(item T) error {
	if q.in-q.out == q.capacity {
		return ErrFull
	}
	q.slots[q.in&q.mask] = item
	q.in++
	return nil
}

// Pop removes and returns the oldest item. Returns ErrEmpty if the queue
// holds no items.
func (q *Queue[T]) Pop() (T, error) {
	var zero T
	if q.in == q.out {
		return zero, ErrEmpty
	}
	item := q.slots[q.out&q.mask]
	q.out++
	return item, nil
}

// Len reports the number of items currently queued.
func (q *Queue[T]) Len() int {
	return int(q.in - q.out)
}

// Cap reports the fixed capacity.
func (q *Queue[T]) Cap() int {
	return int(q.capacity)
}
