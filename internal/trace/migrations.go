package trace

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the trace tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		label       TEXT NOT NULL DEFAULT '',
		mode        TEXT NOT NULL,
		workers     INTEGER NOT NULL,
		batches     INTEGER NOT NULL DEFAULT 0,
		jobs        INTEGER NOT NULL DEFAULT 0,
		suspensions INTEGER NOT NULL DEFAULT 0,
		resumes     INTEGER NOT NULL DEFAULT 0,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
