package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/surveyrun/internal/config"
	"github.com/sawpanic/surveyrun/internal/persistence"
	"github.com/sawpanic/surveyrun/internal/persistence/postgres"
)

// Manager manages the run-store connection and repository instances
type Manager struct {
	db     *sqlx.DB
	config config.DatabaseSection
	repos  *persistence.Repository
	health *healthChecker
}

// NewManager opens the database when enabled. A disabled manager has no
// repositories and always reports healthy.
func NewManager(ctx context.Context, cfg config.DatabaseSection) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{
			config: cfg,
			health: &healthChecker{enabled: false},
		}, nil
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newManager(db, cfg), nil
}

func newManager(db *sqlx.DB, cfg config.DatabaseSection) *Manager {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	log.Debug().
		Int("max_open", cfg.MaxOpenConns).
		Int("max_idle", cfg.MaxIdleConns).
		Msg("Run store connected")

	return &Manager{
		db:     db,
		config: cfg,
		repos: &persistence.Repository{
			Runs: postgres.NewRunsRepo(db, cfg.QueryTimeout),
		},
		health: &healthChecker{
			enabled: true,
			db:      db,
			timeout: cfg.QueryTimeout,
		},
	}
}

// Migrate creates the run-store schema. It is a no-op when disabled.
func (m *Manager) Migrate(ctx context.Context) error {
	if !m.IsEnabled() {
		return nil
	}
	return postgres.Migrate(ctx, m.db)
}

// Runs returns the run repository, or nil if the database is disabled
func (m *Manager) Runs() persistence.RunRepo {
	if m.repos == nil {
		return nil
	}
	return m.repos.Runs
}

// Health returns the health checker interface
func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

// IsEnabled returns whether database persistence is enabled
func (m *Manager) IsEnabled() bool {
	return m.config.Enabled && m.db != nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// healthChecker implements persistence.RepositoryHealth
type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

// Health returns current repository health status
func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"Database persistence disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}

	start := time.Now()
	var errs []string
	healthy := true

	if err := h.Ping(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
		healthy = false
	}

	stats := h.db.Stats()
	return persistence.HealthCheck{
		Healthy: healthy,
		Errors:  errs,
		ConnectionPool: map[string]int{
			"max_open": stats.MaxOpenConnections,
			"open":     stats.OpenConnections,
			"in_use":   stats.InUse,
			"idle":     stats.Idle,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

// Ping tests basic connectivity to database
func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return h.db.PingContext(pingCtx)
}
