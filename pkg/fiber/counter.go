package fiber

import (
	"sync"
	"sync/atomic"
)

// counter is one batch-completion slot. remaining is mutated only by
// atomic decrement on the completion path; signal is the pre-allocated
// wake channel for a waiter outside any fiber. Slots are reused in place
// for the scheduler's lifetime.
type counter struct {
	remaining atomic.Int64
	signal    chan struct{}
}

type waiterKind uint8

const (
	waiterNone waiterKind = iota
	waiterFiber
	waiterExternal
)

// sleepRegistry records, per counter, the at-most-one waiter parked on it.
// It is consulted under its own mutex on every zero-crossing and on every
// wait registration; that mutex is what makes "exactly one of waker and
// waiter releases the counter" hold under any interleaving.
type sleepRegistry struct {
	mu    sync.Mutex
	kind  []waiterKind
	fiber []uint32 // waiting fiber id, valid when kind == waiterFiber
}

func newSleepRegistry(maxCounters int) *sleepRegistry {
	return &sleepRegistry{
		kind:  make([]waiterKind, maxCounters),
		fiber: make([]uint32, maxCounters),
	}
}

// register records a waiter for cid unless the counter already reached
// zero, in which case it reports false and records nothing.
func (r *sleepRegistry) register(cid uint32, slot *counter, k waiterKind, fid uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot.remaining.Load() == 0 {
		// The last job completed between the caller's check and our lock;
		// the waker saw no registration, so the waiter takes the fast path
		// and releases the counter itself.
		return false
	}
	r.kind[cid] = k
	r.fiber[cid] = fid
	return true
}

// take removes and returns the registered waiter for cid, if any. Called
// by the zero-crossing job completion.
func (r *sleepRegistry) take(cid uint32) (waiterKind, uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.kind[cid]
	r.kind[cid] = waiterNone
	return k, r.fiber[cid]
}

// onJobComplete decrements the counter for a finished job. On the zero
// crossing it wakes the registered waiter, if any: a fiber waiter is made
// READY and the counter is released here; an external waiter is signalled
// and releases the counter itself after waking.
func (c *Context) onJobComplete(cid uint32) {
	c.stats.executed.Add(1)
	slot := c.counters.At(cid)
	if slot.remaining.Add(-1) != 0 {
		return
	}

	kind, fid := c.sleepers.take(cid)
	switch kind {
	case waiterNone:
		// Nobody is waiting yet; the pending Wait will observe zero and
		// release the counter on its fast path.
	case waiterFiber:
		c.wakeFiber(fid)
		c.counters.Release(cid)
	case waiterExternal:
		slot.signal <- struct{}{}
	}
}

// wakeFiber transitions a waiting fiber to READY and queues it for
// resumption ahead of fresh jobs.
func (c *Context) wakeFiber(fid uint32) {
	f := c.fibers.At(fid)
	f.state.Store(stateReady)
	c.stats.resumes.Add(1)

	c.runMu.Lock()
	if err := c.ready.Push(fid); err != nil {
		// A fiber exists in at most one queue; the ready queue is sized
		// to the whole pool, so this cannot happen.
		c.runMu.Unlock()
		panic("fiber: ready queue overflow")
	}
	c.runCond.Signal()
	c.runMu.Unlock()
}
