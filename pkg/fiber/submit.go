package fiber

import (
	"fmt"

	"github.com/me/gofib/internal/ring"
)

// SubmitBatch queues jobs as one batch and returns the counter handle
// tracking it. All jobs become runnable before SubmitBatch returns; no
// ordering is guaranteed among them. The batch is pushed all-or-nothing:
// if the job queue cannot take every job, or no counter slot is free,
// SubmitBatch returns ErrCapacityExceeded and queues nothing.
//
// The returned handle must be passed to exactly one Wait call.
func (c *Context) SubmitBatch(jobs ...Job) (Counter, error) {
	cid, err := c.counters.Alloc()
	if err != nil {
		return Counter{}, fmt.Errorf("%w: all %d counters live", ErrCapacityExceeded, c.counters.Cap())
	}
	c.counters.At(cid).remaining.Store(int64(len(jobs)))

	c.runMu.Lock()
	if c.stopped {
		c.runMu.Unlock()
		c.counters.Release(cid)
		return Counter{}, ErrClosed
	}
	if free := c.jobs.Cap() - c.jobs.Len(); free < len(jobs) {
		c.runMu.Unlock()
		c.counters.Release(cid)
		return Counter{}, fmt.Errorf("%w: job queue has %d free slots, batch needs %d",
			ErrCapacityExceeded, free, len(jobs))
	}
	for _, fn := range jobs {
		if err := c.jobs.Push(task{fn: fn, counter: cid}); err != nil {
			// Unreachable: capacity was checked under the same lock.
			c.runMu.Unlock()
			panic(fmt.Sprintf("fiber: job queue push after capacity check: %v", err))
		}
	}
	c.runCond.Broadcast()
	c.runMu.Unlock()

	c.stats.batches.Add(1)
	c.stats.submitted.Add(uint64(len(jobs)))
	return Counter{id: cid}, nil
}

// tryPopJob dequeues one runnable job, used by the inline drain path.
func (c *Context) tryPopJob() (task, bool) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	t, err := c.jobs.Pop()
	if err != nil {
		if err != ring.ErrEmpty {
			panic(fmt.Sprintf("fiber: job queue pop: %v", err))
		}
		return task{}, false
	}
	return t, true
}
