package fiber

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/gofib/internal/config"
	"github.com/me/gofib/internal/logging"
)

// testConfig returns a small validated config for the given mode.
func testConfig(mode config.Mode, workers int) config.Config {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.Workers = workers
	cfg.MaxJobs = 256
	cfg.MaxCounters = 64
	cfg.MaxFibers = 32
	return cfg
}

func newTestContext(t *testing.T, mode config.Mode, workers int) *Context {
	t.Helper()
	c, err := New(testConfig(mode, workers), logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// bothModes runs a subtest in fibers and inline mode; the fallback must
// produce identical final state for the same job graph.
func bothModes(t *testing.T, workers int, fn func(t *testing.T, c *Context)) {
	t.Helper()
	for _, mode := range []config.Mode{config.ModeFibers, config.ModeInline} {
		t.Run(string(mode), func(t *testing.T) {
			fn(t, newTestContext(t, mode, workers))
		})
	}
}

func TestBatchRunsEveryJobOnce(t *testing.T) {
	bothModes(t, 4, func(t *testing.T, c *Context) {
		for _, n := range []int{0, 1, 3, 50} {
			invocations := make([]atomic.Int64, max(n, 1))
			jobs := make([]Job, n)
			for i := range jobs {
				i := i
				jobs[i] = func(*TaskContext) { invocations[i].Add(1) }
			}

			ctr, err := c.SubmitBatch(jobs...)
			if err != nil {
				t.Fatalf("SubmitBatch(%d jobs): %v", n, err)
			}
			c.Wait(ctr)

			for i := 0; i < n; i++ {
				if got := invocations[i].Load(); got != 1 {
					t.Errorf("n=%d: job %d invoked %d times, want 1", n, i, got)
				}
			}
		}
	})
}

func TestWaitOnCompletedCounterIsFastPath(t *testing.T) {
	bothModes(t, 2, func(t *testing.T, c *Context) {
		ctr, err := c.SubmitBatch(func(*TaskContext) {})
		if err != nil {
			t.Fatalf("SubmitBatch: %v", err)
		}
		// Let the single job finish before waiting.
		waitUntil(t, func() bool { return c.Stats().JobsExecuted >= 1 })

		before := c.Stats().Suspensions
		c.Wait(ctr)
		if got := c.Stats().Suspensions; got != before {
			t.Errorf("Wait on zero counter suspended (suspensions %d -> %d)", before, got)
		}
		if got := c.Stats().LiveCounters; got != 0 {
			t.Errorf("LiveCounters after fast-path wait = %d, want 0", got)
		}
	})
}

// TestCounterReleasedExactlyOnce covers both arrival orders: the waiter
// showing up after the last completion, and before it.
func TestCounterReleasedExactlyOnce(t *testing.T) {
	bothModes(t, 2, func(t *testing.T, c *Context) {
		// Waiter after completion.
		ctr, err := c.SubmitBatch(func(*TaskContext) {})
		if err != nil {
			t.Fatalf("SubmitBatch: %v", err)
		}
		waitUntil(t, func() bool { return c.Stats().QueuedJobs == 0 && c.Stats().JobsExecuted >= 1 })
		c.Wait(ctr)
		if got := c.Stats().LiveCounters; got != 0 {
			t.Fatalf("LiveCounters after late wait = %d, want 0", got)
		}

		// Waiter before completion: jobs blocked until released.
		gate := make(chan struct{})
		ctr2, err := c.SubmitBatch(
			func(*TaskContext) { <-gate },
			func(*TaskContext) { <-gate },
		)
		if err != nil {
			t.Fatalf("SubmitBatch: %v", err)
		}
		done := make(chan struct{})
		go func() {
			c.Wait(ctr2)
			close(done)
		}()
		time.Sleep(10 * time.Millisecond) // let the waiter park
		close(gate)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Wait did not return after batch completed")
		}
		if got := c.Stats().LiveCounters; got != 0 {
			t.Fatalf("LiveCounters after early wait = %d, want 0", got)
		}
	})
}

// TestConcurrentAccumulator: N jobs split across M workers each increment
// one shared accumulator; it must read exactly N after the wait returns.
func TestConcurrentAccumulator(t *testing.T) {
	bothModes(t, 8, func(t *testing.T, c *Context) {
		const n = 200
		var acc atomic.Int64
		jobs := make([]Job, n)
		for i := range jobs {
			jobs[i] = func(*TaskContext) { acc.Add(1) }
		}
		ctr, err := c.SubmitBatch(jobs...)
		if err != nil {
			t.Fatalf("SubmitBatch: %v", err)
		}
		c.Wait(ctr)
		if got := acc.Load(); got != n {
			t.Errorf("accumulator = %d, want %d", got, n)
		}
	})
}

// TestResultSlots is the three-slot scenario: each job writes 1 into its
// own slot; after the wait the array is [1,1,1].
func TestResultSlots(t *testing.T) {
	bothModes(t, 3, func(t *testing.T, c *Context) {
		var results [3]int32
		ctr, err := c.SubmitBatch(
			func(*TaskContext) { atomic.StoreInt32(&results[0], 1) },
			func(*TaskContext) { atomic.StoreInt32(&results[1], 1) },
			func(*TaskContext) { atomic.StoreInt32(&results[2], 1) },
		)
		if err != nil {
			t.Fatalf("SubmitBatch: %v", err)
		}
		c.Wait(ctr)
		for i := range results {
			if got := atomic.LoadInt32(&results[i]); got != 1 {
				t.Errorf("results[%d] = %d, want 1", i, got)
			}
		}
	})
}

// TestNestedWaitSuspends: a job submits a sub-batch of two and waits on
// it. A single worker can only finish the sub-jobs if the outer job's
// fiber actually suspends, and the outer job may only resume after both
// sub-jobs ran.
func TestNestedWaitSuspends(t *testing.T) {
	c := newTestContext(t, config.ModeFibers, 1)

	var subDone atomic.Int64
	var resumedEarly atomic.Bool

	ctr, err := c.SubmitBatch(func(tc *TaskContext) {
		sub, err := tc.Submit(
			func(*TaskContext) { subDone.Add(1) },
			func(*TaskContext) { subDone.Add(1) },
		)
		if err != nil {
			t.Errorf("nested Submit: %v", err)
			return
		}
		tc.Wait(sub)
		if subDone.Load() != 2 {
			resumedEarly.Store(true)
		}
	})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	c.Wait(ctr)

	if resumedEarly.Load() {
		t.Error("outer job resumed before both sub-jobs finished")
	}
	st := c.Stats()
	if st.Suspensions < 1 {
		t.Errorf("Suspensions = %d, want >= 1 (outer fiber must have yielded)", st.Suspensions)
	}
	if st.Resumes < 1 {
		t.Errorf("Resumes = %d, want >= 1", st.Resumes)
	}
	if st.JobsExecuted != 3 {
		t.Errorf("JobsExecuted = %d, want 3", st.JobsExecuted)
	}
}

// TestNestedWaitInline: the same job graph through the fallback mode must
// reach the same final state, without any suspension.
func TestNestedWaitInline(t *testing.T) {
	c := newTestContext(t, config.ModeInline, 1)

	var subDone atomic.Int64
	ctr, err := c.SubmitBatch(func(tc *TaskContext) {
		sub, err := tc.Submit(
			func(*TaskContext) { subDone.Add(1) },
			func(*TaskContext) { subDone.Add(1) },
		)
		if err != nil {
			t.Errorf("nested Submit: %v", err)
			return
		}
		tc.Wait(sub)
	})
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	c.Wait(ctr)

	if got := subDone.Load(); got != 2 {
		t.Errorf("subDone = %d, want 2", got)
	}
	st := c.Stats()
	if st.Suspensions != 0 {
		t.Errorf("Suspensions = %d, want 0 in inline mode", st.Suspensions)
	}
	if st.JobsExecuted != 3 {
		t.Errorf("JobsExecuted = %d, want 3", st.JobsExecuted)
	}
	if st.InlineDrained < 1 {
		t.Errorf("InlineDrained = %d, want >= 1", st.InlineDrained)
	}
}

func TestSubmitBatchCapacity(t *testing.T) {
	cfg := testConfig(config.ModeFibers, 1)
	cfg.MaxJobs = 2
	c, err := New(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	// Hold the single worker so the queue cannot drain.
	gate := make(chan struct{})
	defer close(gate)
	held, err := c.SubmitBatch(func(*TaskContext) { <-gate })
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	waitUntil(t, func() bool { return c.Stats().QueuedJobs == 0 })

	if _, err := c.SubmitBatch(
		func(*TaskContext) {}, func(*TaskContext) {}, func(*TaskContext) {},
	); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("oversized SubmitBatch = %v, want ErrCapacityExceeded", err)
	}

	// The failed submission must not leak its counter: only the held
	// batch is live.
	if got := c.Stats().LiveCounters; got != 1 {
		t.Errorf("LiveCounters after failed submit = %d, want 1", got)
	}
	go c.Wait(held) // returns once the deferred close(gate) lets the job finish
}

// TestSubmitBatchCounterPoolExhausted: with every counter slot live, the
// next SubmitBatch must fail with ErrCapacityExceeded and queue nothing.
func TestSubmitBatchCounterPoolExhausted(t *testing.T) {
	cfg := testConfig(config.ModeFibers, 1)
	cfg.MaxCounters = 2
	c, err := New(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	// Empty batches keep their counters live until waited on without
	// putting anything through the job queue.
	held := make([]Counter, 2)
	for i := range held {
		held[i], err = c.SubmitBatch()
		if err != nil {
			t.Fatalf("SubmitBatch #%d: %v", i, err)
		}
	}
	if got := c.Stats().LiveCounters; got != 2 {
		t.Fatalf("LiveCounters = %d, want 2", got)
	}

	var ran atomic.Bool
	_, err = c.SubmitBatch(func(*TaskContext) { ran.Store(true) })
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("SubmitBatch with exhausted counter pool = %v, want ErrCapacityExceeded", err)
	}
	st := c.Stats()
	if st.QueuedJobs != 0 || st.JobsSubmitted != 0 {
		t.Errorf("failed submit queued work: queued=%d submitted=%d, want 0/0", st.QueuedJobs, st.JobsSubmitted)
	}
	if ran.Load() {
		t.Error("job from rejected batch ran")
	}

	// Waiting frees the slots; submission works again.
	for _, ctr := range held {
		c.Wait(ctr)
	}
	ctr, err := c.SubmitBatch(func(*TaskContext) {})
	if err != nil {
		t.Fatalf("SubmitBatch after release: %v", err)
	}
	c.Wait(ctr)
}

func TestSubmitAfterClose(t *testing.T) {
	c, err := New(testConfig(config.ModeInline, 1), logging.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.SubmitBatch(func(*TaskContext) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("SubmitBatch after Close = %v, want ErrClosed", err)
	}
	// Idempotent.
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestManyBatchesConcurrently(t *testing.T) {
	bothModes(t, 4, func(t *testing.T, c *Context) {
		var total atomic.Int64
		var wg sync.WaitGroup
		for b := 0; b < 16; b++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				jobs := make([]Job, 10)
				for i := range jobs {
					jobs[i] = func(*TaskContext) { total.Add(1) }
				}
				ctr, err := c.SubmitBatch(jobs...)
				if err != nil {
					t.Errorf("SubmitBatch: %v", err)
					return
				}
				c.Wait(ctr)
			}()
		}
		wg.Wait()
		if got := total.Load(); got != 160 {
			t.Errorf("total = %d, want 160", got)
		}
		if got := c.Stats().LiveCounters; got != 0 {
			t.Errorf("LiveCounters after all waits = %d, want 0", got)
		}
	})
}

// waitUntil polls cond for up to five seconds.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached within timeout")
}
