package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS diverge_runs (
		id          UUID PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		source      TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL,
		responses   INTEGER NOT NULL,
		cell_count  INTEGER NOT NULL,
		rank_min    INTEGER NOT NULL,
		rank_max    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS diverge_cells (
		run_id       UUID NOT NULL REFERENCES diverge_runs(id) ON DELETE CASCADE,
		ordinal      INTEGER NOT NULL,
		treatment    TEXT NOT NULL,
		prompt       TEXT NOT NULL,
		question     TEXT NOT NULL,
		rank         INTEGER NOT NULL,
		total        INTEGER NOT NULL CHECK (total >= 0),
		grand_total  INTEGER NOT NULL CHECK (grand_total >= 0),
		pct_of_total DOUBLE PRECISION NOT NULL,
		pct_start    DOUBLE PRECISION NOT NULL,
		pct_end      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, ordinal)
	)`,
	`CREATE INDEX IF NOT EXISTS diverge_runs_created_at_idx ON diverge_runs (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS diverge_runs_fingerprint_idx ON diverge_runs (fingerprint)`,
}

// Migrate creates the run store tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
