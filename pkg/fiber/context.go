package fiber

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/gofib/internal/config"
	"github.com/me/gofib/internal/pool"
	"github.com/me/gofib/internal/ring"
)

// Context is the process-wide scheduler instance. It owns every pool,
// queue and lock, all sized once from the Config passed to New, and it
// owns the worker goroutines. A Context is live from New until Close.
type Context struct {
	cfg    config.Config
	logger *slog.Logger

	// runMu guards the job queue, the ready-fiber queue and the stopped
	// flag; runCond wakes idle workers when either queue gains an item or
	// a fiber slot frees up.
	runMu   sync.Mutex
	runCond *sync.Cond
	jobs    *ring.Queue[task]
	ready   *ring.Queue[uint32]
	stopped bool

	counters *pool.Pool[counter]
	fibers   *pool.Pool[fiber]
	sleepers *sleepRegistry

	wg    sync.WaitGroup
	stats stats
}

// New constructs a scheduler from cfg. This is the single allocation
// point: every slot, queue and channel the scheduler will ever use is
// created here, and the worker (and, in fibers mode, fiber) goroutines
// are spawned before New returns.
func New(cfg config.Config, logger *slog.Logger) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fiber: config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Context{
		cfg:      cfg,
		logger:   logger.With("component", "scheduler"),
		jobs:     ring.New[task](cfg.MaxJobs),
		counters: pool.New[counter](cfg.MaxCounters),
		sleepers: newSleepRegistry(cfg.MaxCounters),
	}
	c.runCond = sync.NewCond(&c.runMu)

	for i := 0; i < cfg.MaxCounters; i++ {
		c.counters.At(uint32(i)).signal = make(chan struct{}, 1)
	}

	if cfg.Mode == config.ModeFibers {
		// A fiber is only ever in one place, so the ready queue sized to
		// the pool can never overflow.
		c.ready = ring.New[uint32](cfg.MaxFibers)
		c.fibers = pool.New[fiber](cfg.MaxFibers)
		for i := 0; i < cfg.MaxFibers; i++ {
			f := c.fibers.At(uint32(i))
			f.id = uint32(i)
			f.run = make(chan task)
			f.resume = make(chan struct{})
			f.yield = make(chan yieldEvent)
			f.tc = TaskContext{c: c, f: f}
			go c.fiberLoop(f)
		}
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.workerLoop(i)
	}

	c.logger.Info("scheduler started",
		"mode", cfg.Mode,
		"workers", cfg.Workers,
		"max_jobs", cfg.MaxJobs,
		"max_counters", cfg.MaxCounters,
		"max_fibers", cfg.MaxFibers,
	)
	return c, nil
}

// Close stops the workers and waits for them to exit. Jobs still queued
// are dropped; fibers suspended on a counter that will now never complete
// are leaked and reported, as are counters whose handle was never waited
// on. Close is idempotent.
func (c *Context) Close() error {
	c.runMu.Lock()
	if c.stopped {
		c.runMu.Unlock()
		return nil
	}
	c.stopped = true
	dropped := c.jobs.Len()
	c.runCond.Broadcast()
	c.runMu.Unlock()

	c.wg.Wait()

	if c.fibers != nil {
		// Idle fibers are parked on their run channel; closing it ends
		// their goroutine. Suspended fibers are parked on resume and leak.
		for i := 0; i < c.fibers.Cap(); i++ {
			close(c.fibers.At(uint32(i)).run)
		}
		if leaked := c.fibers.Live(); leaked > 0 {
			c.logger.Warn("fibers leaked at close", "count", leaked)
		}
	}
	if leaked := c.counters.Live(); leaked > 0 {
		c.logger.Warn("counters leaked at close (batch never waited on?)", "count", leaked)
	}
	if dropped > 0 {
		c.logger.Warn("queued jobs dropped at close", "count", dropped)
	}
	c.logger.Info("scheduler stopped", "executed", c.stats.executed.Load())
	return nil
}

// Mode reports the configured execution mode.
func (c *Context) Mode() config.Mode {
	return c.cfg.Mode
}
