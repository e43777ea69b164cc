// Package pool implements a fixed-size slot arena with free-list index
// allocation. A Pool hands out stable uint32 indices into a pre-allocated
// slot array; no heap allocation happens after construction.
package pool

import (
	"fmt"
	"sync"

	"github.com/me/gofib/internal/ring"
)

// Pool pairs a slot array of capacity C with a ring queue of free indices,
// pre-filled with every index at construction.
//
// A live index is one that was returned by Alloc and not yet passed to
// Release. Releasing an index twice, or touching a slot after release, is a
// programmer error the pool does not detect; out-of-range indices panic.
type Pool[T any] struct {
	mu    sync.Mutex
	slots []T
	free  *ring.Queue[uint32]
}

// New creates a pool of capacity slots, all initially free.
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{
		slots: make([]T, capacity),
		free:  ring.New[uint32](capacity),
	}
	for i := 0; i < capacity; i++ {
		// Cannot fail: the free queue has exactly capacity slots.
		if err := p.free.Push(uint32(i)); err != nil {
			panic(fmt.Sprintf("pool: seeding free list: %v", err))
		}
	}
	return p
}

// Alloc pops a free index. The slot at that index still holds whatever the
// previous owner left; the caller initializes it. Returns ring.ErrEmpty
// when every slot is live.
func (p *Pool[T]) Alloc() (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.Pop()
}

// Release returns idx to the free list. Panics if idx was never a valid
// index for this pool.
func (p *Pool[T]) Release(idx uint32) {
	p.check(idx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.free.Push(idx); err != nil {
		// More releases than allocations: the free list can only overflow
		// on a double release.
		panic(fmt.Sprintf("pool: release of index %d overflows free list (double release?)", idx))
	}
}

// At returns the slot for idx. The pointer is stable for the pool's
// lifetime. Panics if idx is out of range.
func (p *Pool[T]) At(idx uint32) *T {
	p.check(idx)
	return &p.slots[idx]
}

// Cap reports the total number of slots.
func (p *Pool[T]) Cap() int {
	return len(p.slots)
}

// Live reports the number of currently allocated slots.
func (p *Pool[T]) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - p.free.Len()
}

func (p *Pool[T]) check(idx uint32) {
	if int(idx) >= len(p.slots) {
		panic(fmt.Sprintf("pool: index %d out of range [0,%d)", idx, len(p.slots)))
	}
}
