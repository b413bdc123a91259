package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/survey"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Run is one persisted invocation of the diverging transform
type Run struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Source      string    `json:"source" db:"source"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Responses   int       `json:"responses" db:"responses"`
	CellCount   int       `json:"cell_count" db:"cell_count"`
	RankMin     int       `json:"rank_min" db:"rank_min"`
	RankMax     int       `json:"rank_max" db:"rank_max"`

	// Cells is only populated by RunRepo.Get.
	Cells []likert.Cell `json:"cells,omitempty" db:"-"`
}

// Domain returns the rank domain the run was computed under
func (r Run) Domain() survey.RankDomain {
	return survey.RankDomain{Min: r.RankMin, Max: r.RankMax}
}

// RunRepo stores transform runs and their cells
type RunRepo interface {
	// Save writes the run and all of its cells atomically. A zero ID or
	// CreatedAt is filled in.
	Save(ctx context.Context, run *Run) error

	// Get returns a run with its cells in their original order
	Get(ctx context.Context, id uuid.UUID) (*Run, error)

	// List returns the most recent runs, newest first, without cells
	List(ctx context.Context, limit int) ([]Run, error)
}

// Repository aggregates all repository interfaces
type Repository struct {
	Runs RunRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
