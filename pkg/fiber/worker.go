package fiber

import "fmt"

// unit is one runnable item handed to a worker: either a fiber to resume
// or a fresh job plus the idle fiber that will host it.
type unit struct {
	resume bool
	fid    uint32
	t      task
}

// workerLoop is run by every worker goroutine until Close.
func (c *Context) workerLoop(id int) {
	defer c.wg.Done()
	c.logger.Debug("worker started", "worker_id", id)

	if c.cfg.Mode.IsInline() {
		c.inlineWorkerLoop()
		return
	}
	for {
		u, ok := c.nextRunnable()
		if !ok {
			return
		}
		f := c.fibers.At(u.fid)
		if u.resume {
			f.resume <- struct{}{}
		} else {
			f.state.Store(stateRunning)
			f.run <- u.t
		}
		c.attend(f)
	}
}

// nextRunnable blocks until it can hand back a runnable unit, or reports
// false at teardown. Ready fibers take priority over fresh jobs so
// unblocked work drains before new work starts. A fresh job is only taken
// once an idle fiber is secured for it, so nothing ever has to be pushed
// back.
func (c *Context) nextRunnable() (unit, bool) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	for {
		if c.stopped {
			return unit{}, false
		}
		if fid, err := c.ready.Pop(); err == nil {
			return unit{resume: true, fid: fid}, true
		}
		if c.jobs.Len() > 0 {
			if fid, err := c.fibers.Alloc(); err == nil {
				t, err := c.jobs.Pop()
				if err != nil {
					panic(fmt.Sprintf("fiber: job queue pop under lock: %v", err))
				}
				return unit{fid: fid, t: t}, true
			}
			// Jobs are pending but every fiber is busy; a fiber release
			// will signal the cond.
		}
		c.runCond.Wait()
	}
}

// attend waits for the fiber's next yield. A completed job decrements its
// counter and frees the fiber; a suspended fiber is left to the sleep
// registry and this worker moves on.
func (c *Context) attend(f *fiber) {
	ev := <-f.yield
	if ev.kind == yieldSuspended {
		return
	}
	c.onJobComplete(ev.counter)
	c.releaseFiber(f)
}

func (c *Context) releaseFiber(f *fiber) {
	f.state.Store(stateIdle)
	c.fibers.Release(f.id)

	// A worker may be stalled on a pending job for want of a fiber.
	c.runMu.Lock()
	c.runCond.Signal()
	c.runMu.Unlock()
}

// fiberLoop is the body of one fiber goroutine, spawned at construction.
// It parks on the run channel between jobs and exits when the channel is
// closed at teardown.
func (c *Context) fiberLoop(f *fiber) {
	for t := range f.run {
		t.fn(&f.tc)
		f.yield <- yieldEvent{kind: yieldDone, counter: t.counter}
	}
}

// inlineWorkerLoop executes jobs directly on the worker goroutine. Waits
// inside a job drain the queue recursively instead of suspending.
func (c *Context) inlineWorkerLoop() {
	tc := TaskContext{c: c}
	for {
		t, ok := c.nextJob()
		if !ok {
			return
		}
		t.fn(&tc)
		c.onJobComplete(t.counter)
	}
}

// nextJob blocks until a job is queued, or reports false at teardown.
func (c *Context) nextJob() (task, bool) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	for {
		if c.stopped {
			return task{}, false
		}
		if t, err := c.jobs.Pop(); err == nil {
			return t, true
		}
		c.runCond.Wait()
	}
}
