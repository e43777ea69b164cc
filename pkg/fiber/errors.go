package fiber

import "errors"

var (
	// ErrCapacityExceeded is returned by SubmitBatch when the job queue or
	// the counter pool cannot take the batch. Capacities are fixed at
	// construction; the scheduler never resizes.
	ErrCapacityExceeded = errors.New("fiber: capacity exceeded")

	// ErrClosed is returned by SubmitBatch after Close.
	ErrClosed = errors.New("fiber: scheduler closed")
)
