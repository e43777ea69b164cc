package fiber

import "runtime"

// Wait blocks the caller until the batch behind ctr completes, then
// releases the counter slot. It is the entry point for callers outside
// any job; jobs wait through their TaskContext instead.
//
// Fast path: if the count is already zero the counter is released and
// Wait returns without suspending anything. Each handle supports exactly
// one Wait, from either side.
func (c *Context) Wait(ctr Counter) {
	slot := c.counters.At(ctr.id)
	if slot.remaining.Load() == 0 {
		c.counters.Release(ctr.id)
		return
	}
	if c.cfg.Mode.IsInline() {
		c.waitInline(ctr, nil)
		return
	}

	if !c.sleepers.register(ctr.id, slot, waiterExternal, 0) {
		c.counters.Release(ctr.id)
		return
	}
	// The zero-crossing completion sends exactly one signal per
	// registration; the buffered channel holds it if it raced ahead.
	<-slot.signal
	c.counters.Release(ctr.id)
}

// waitFiber is the suspending slow path: register the fiber as the
// counter's waiter, yield the fiber back to its worker, and park until a
// worker resumes it. The waker releases the counter on this path.
func (c *Context) waitFiber(ctr Counter, f *fiber) {
	slot := c.counters.At(ctr.id)
	if slot.remaining.Load() == 0 {
		c.counters.Release(ctr.id)
		return
	}

	f.state.Store(stateWaiting)
	if !c.sleepers.register(ctr.id, slot, waiterFiber, f.id) {
		f.state.Store(stateRunning)
		c.counters.Release(ctr.id)
		return
	}
	c.stats.suspensions.Add(1)

	f.yield <- yieldEvent{kind: yieldSuspended}
	<-f.resume
	f.state.Store(stateRunning)
}

// waitInline is the non-suspending fallback: drain and execute queued
// jobs on the calling goroutine, recursively through any nested waits,
// until the awaited counter reaches zero. Final state matches the
// suspending path; a goroutine blocked here cannot service unrelated work
// until its whole wait-subtree completes.
func (c *Context) waitInline(ctr Counter, tc *TaskContext) {
	if tc == nil {
		tc = &TaskContext{c: c}
	}
	slot := c.counters.At(ctr.id)
	for slot.remaining.Load() > 0 {
		t, ok := c.tryPopJob()
		if !ok {
			// The remaining jobs of this batch are running on other
			// workers; nothing to steal, so let them finish.
			runtime.Gosched()
			continue
		}
		c.stats.drained.Add(1)
		t.fn(tc)
		c.onJobComplete(t.counter)
	}
	c.counters.Release(ctr.id)
}
