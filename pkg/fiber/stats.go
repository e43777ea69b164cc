package fiber

import "sync/atomic"

type stats struct {
	batches     atomic.Uint64
	submitted   atomic.Uint64
	executed    atomic.Uint64
	suspensions atomic.Uint64
	resumes     atomic.Uint64
	drained     atomic.Uint64
}

// Stats is a point-in-time snapshot of scheduler activity.
type Stats struct {
	Mode          string `json:"mode"`
	Workers       int    `json:"workers"`
	Batches       uint64 `json:"batches"`
	JobsSubmitted uint64 `json:"jobs_submitted"`
	JobsExecuted  uint64 `json:"jobs_executed"`
	Suspensions   uint64 `json:"suspensions"`
	Resumes       uint64 `json:"resumes"`
	InlineDrained uint64 `json:"inline_drained"`
	QueuedJobs    int    `json:"queued_jobs"`
	LiveCounters  int    `json:"live_counters"`
	LiveFibers    int    `json:"live_fibers"`
}

// Stats snapshots scheduler activity counters. Gauges (queued jobs, live
// counters, live fibers) are read racily against running workers and are
// only ever approximate while jobs are in flight.
func (c *Context) Stats() Stats {
	s := Stats{
		Mode:          string(c.cfg.Mode),
		Workers:       c.cfg.Workers,
		Batches:       c.stats.batches.Load(),
		JobsSubmitted: c.stats.submitted.Load(),
		JobsExecuted:  c.stats.executed.Load(),
		Suspensions:   c.stats.suspensions.Load(),
		Resumes:       c.stats.resumes.Load(),
		InlineDrained: c.stats.drained.Load(),
		LiveCounters:  c.counters.Live(),
	}
	c.runMu.Lock()
	s.QueuedJobs = c.jobs.Len()
	c.runMu.Unlock()
	if c.fibers != nil {
		s.LiveFibers = c.fibers.Live()
	}
	return s
}
