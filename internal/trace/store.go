// Package trace persists scheduler run history. It sits entirely outside
// the allocation-free core: the CLI records a row after a run finishes and
// the status server reads them back.
package trace

import (
	"context"
	"time"
)

// Run is one recorded scheduler run.
type Run struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	Mode        string        `json:"mode"`
	Workers     int           `json:"workers"`
	Batches     uint64        `json:"batches"`
	Jobs        uint64        `json:"jobs"`
	Suspensions uint64        `json:"suspensions"`
	Resumes     uint64        `json:"resumes"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Store defines the run-history persistence layer.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
