// Package fiber implements a fixed-capacity parallel job scheduler. A small
// pool of worker goroutines executes many short-lived jobs, and any job may
// wait on a batch of other jobs without blocking its worker: the job's
// fiber suspends and the worker moves on to other runnable work.
//
// Every pool and queue is sized once, at construction, from a Config. After
// New returns, the scheduler performs no allocation on the submit, execute,
// or wait paths.
//
// Fibers are mapped onto goroutines spawned at construction and parked on
// per-fiber channels; suspension and resumption are channel handoffs rather
// than explicit context switches. ModeInline replaces suspension with
// synchronous draining for the degenerate, non-suspending strategy.
package fiber

import "sync/atomic"

// Job is one schedulable unit of work. User data travels in the closure.
//
// A Job must not signal failure back through the scheduler; error handling
// inside a job is the job's own concern.
type Job func(tc *TaskContext)

// Counter is the opaque handle for a submitted batch. It must be passed to
// exactly one Wait call; waiting twice or never waiting leaks the
// underlying counter slot for the scheduler's lifetime.
type Counter struct {
	id uint32
}

// task is the queued form of a job: entry point plus owning counter.
type task struct {
	fn      Job
	counter uint32
}

// Fiber lifecycle states. A fiber runs until it completes or waits, a
// waiting fiber becomes ready when its counter hits zero, and a ready
// fiber resumes on whichever worker picks it up. stateIdle means the
// record sits in the free pool between jobs.
const (
	stateIdle int32 = iota
	stateRunning
	stateWaiting
	stateReady
)

// fiber is one suspendable execution context. The record lives in the
// fiber pool for the scheduler's lifetime; its goroutine is spawned once
// at construction and parks between jobs.
//
// While running, a fiber is owned by exactly one worker: the worker that
// handed it work is parked on yield. While waiting, it is referenced only
// by the sleep registry.
type fiber struct {
	id     uint32
	run    chan task     // worker -> fiber: start a fresh job
	resume chan struct{} // worker -> fiber: continue after a wait
	yield  chan yieldEvent
	state  atomic.Int32
	tc     TaskContext // pre-built job-side view of this fiber
}

type yieldKind uint8

const (
	yieldDone      yieldKind = iota // job returned; counter carries its batch
	yieldSuspended                  // job is waiting; fiber is in the registry
)

// yieldEvent is what a fiber reports to its attending worker.
type yieldEvent struct {
	kind    yieldKind
	counter uint32
}

// TaskContext is the scheduler handle passed to every job. It submits
// sub-batches and waits on them; a wait from inside a job suspends the
// job's fiber instead of blocking the worker.
type TaskContext struct {
	c *Context
	f *fiber // nil in inline mode
}

// Submit queues a sub-batch from inside a running job.
func (tc *TaskContext) Submit(jobs ...Job) (Counter, error) {
	return tc.c.SubmitBatch(jobs...)
}

// Wait blocks the calling job until the batch behind ctr completes. In
// fibers mode the job's fiber suspends and the worker continues with other
// runnable work; in inline mode the calling goroutine drains and executes
// queued jobs until the counter reaches zero.
func (tc *TaskContext) Wait(ctr Counter) {
	if tc.f == nil {
		tc.c.waitInline(ctr, tc)
		return
	}
	tc.c.waitFiber(ctr, tc.f)
}
