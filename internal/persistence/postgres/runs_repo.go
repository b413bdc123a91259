package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/persistence"
)

// runsRepo implements RunRepo for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a new PostgreSQL run repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunRepo {
	return &runsRepo{
		db:      db,
		timeout: timeout,
	}
}

// Save inserts the run header and its cells in one transaction
func (r *runsRepo) Save(ctx context.Context, run *persistence.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.CellCount = len(run.Cells)

	// Scale the deadline with the batch size
	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(run.Cells)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diverge_runs (id, created_at, source, fingerprint, responses, cell_count, rank_min, rank_max)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.CreatedAt, run.Source, run.Fingerprint,
		run.Responses, run.CellCount, run.RankMin, run.RankMax)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate run %s: %w", run.ID, err)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO diverge_cells (run_id, ordinal, treatment, prompt, question, rank, total, grand_total, pct_of_total, pct_start, pct_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range run.Cells {
		_, err = stmt.ExecContext(ctx,
			run.ID, i, c.Treatment, c.Prompt, c.Question, c.Rank,
			c.Total, c.GrandTotal, c.PctOfTotal, c.PctStart, c.PctEnd)
		if err != nil {
			return fmt.Errorf("failed to insert cell %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a run and its cells
func (r *runsRepo) Get(ctx context.Context, id uuid.UUID) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.Run
	err := r.db.GetContext(ctx, &run, `
		SELECT id, created_at, source, fingerprint, responses, cell_count, rank_min, rank_max
		FROM diverge_runs
		WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var cells []likert.Cell
	err = r.db.SelectContext(ctx, &cells, `
		SELECT treatment, prompt, question, rank, total, grand_total, pct_of_total, pct_start, pct_end
		FROM diverge_cells
		WHERE run_id = $1
		ORDER BY ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get cells for run %s: %w", id, err)
	}
	run.Cells = cells

	return &run, nil
}

// List returns the newest runs first
func (r *runsRepo) List(ctx context.Context, limit int) ([]persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	var runs []persistence.Run
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, created_at, source, fingerprint, responses, cell_count, rank_min, rank_max
		FROM diverge_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}
