package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/surveyrun/internal/cache"
	"github.com/sawpanic/surveyrun/internal/config"
	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/metrics"
	"github.com/sawpanic/surveyrun/internal/persistence"
	"github.com/sawpanic/surveyrun/internal/survey"
)

// ErrRunStoreDisabled is returned by run lookups when no database is configured.
var ErrRunStoreDisabled = errors.New("run store is disabled")

// CellCache is the subset of the redis cache the service needs.
type CellCache interface {
	Get(ctx context.Context, fingerprint string) ([]likert.Cell, bool, error)
	Set(ctx context.Context, fingerprint string, cells []likert.Cell) error
}

// Deps are the optional collaborators of a Service. Nil Cache or Runs
// disables caching or persistence; a nil Metrics gets a private registry.
type Deps struct {
	Cache   CellCache
	Runs    persistence.RunRepo
	Metrics *metrics.Registry
}

// Service runs the diverging transform end to end: load, cache lookup,
// compute, metrics and persistence.
type Service struct {
	questions survey.QuestionSet
	domain    survey.RankDomain
	workers   int
	loader    *survey.Loader

	cache   CellCache
	runs    persistence.RunRepo
	metrics *metrics.Registry
}

// Result is one diverging transform outcome.
type Result struct {
	RunID     string
	Responses int
	Cached    bool
	Cells     *likert.CellSet
}

func NewService(cfg *config.Config, deps Deps) *Service {
	questions := cfg.QuestionSet()
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &Service{
		questions: questions,
		domain:    cfg.Survey.Rank,
		workers:   cfg.Transform.Workers,
		loader:    survey.NewLoader(questions),
		cache:     deps.Cache,
		runs:      deps.Runs,
		metrics:   reg,
	}
}

func (s *Service) Questions() survey.QuestionSet { return s.questions }

func (s *Service) Domain() survey.RankDomain { return s.domain }

func (s *Service) Metrics() *metrics.Registry { return s.metrics }

// LoadFile reads an export from disk.
func (s *Service) LoadFile(ctx context.Context, path string) (*survey.Dataset, error) {
	return s.loader.LoadFile(ctx, path)
}

// Load reads an export from r and labels it with source.
func (s *Service) Load(ctx context.Context, source string, r io.Reader) (*survey.Dataset, error) {
	ds, err := s.loader.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	ds.Source = source
	return ds, nil
}

// Diverge computes the diverging cells for a loaded dataset.
func (s *Service) Diverge(ctx context.Context, ds *survey.Dataset) (*Result, error) {
	responses := ds.Responses()
	fingerprint := cache.Fingerprint(responses, s.domain, s.questions)

	result := &Result{Responses: len(responses)}

	if cells, ok := s.lookup(ctx, fingerprint); ok {
		result.Cells = likert.FromCells(cells, s.domain)
		result.Cached = true
	} else {
		start := time.Now()
		set, err := likert.ComputeDivergingOffsets(responses, s.questions,
			likert.WithRankDomain(s.domain),
			likert.WithWorkers(s.workers),
		)
		cellCount := 0
		if set != nil {
			cellCount = set.Len()
		}
		s.metrics.ObserveTransform(time.Since(start), len(responses), cellCount, err)
		if err != nil {
			return nil, err
		}
		result.Cells = set
		s.store(ctx, fingerprint, set.Cells())
	}

	if s.runs != nil {
		run := &persistence.Run{
			Source:      ds.Source,
			Fingerprint: fingerprint,
			Responses:   len(responses),
			RankMin:     s.domain.Min,
			RankMax:     s.domain.Max,
			Cells:       result.Cells.Cells(),
		}
		if err := s.runs.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist run: %w", err)
		}
		s.metrics.RunsPersisted.Inc()
		result.RunID = run.ID.String()
	}

	log.Info().
		Str("source", ds.Source).
		Int("responses", result.Responses).
		Int("cells", result.Cells.Len()).
		Bool("cached", result.Cached).
		Str("run_id", result.RunID).
		Msg("Diverging transform complete")

	return result, nil
}

// lookup never fails the transform: cache errors count as misses.
func (s *Service) lookup(ctx context.Context, fingerprint string) ([]likert.Cell, bool) {
	if s.cache == nil {
		return nil, false
	}
	cells, found, err := s.cache.Get(ctx, fingerprint)
	switch {
	case err != nil:
		s.metrics.ObserveCache("error")
		log.Warn().Err(err).Msg("Cache lookup failed, computing")
		return nil, false
	case !found:
		s.metrics.ObserveCache("miss")
		return nil, false
	default:
		s.metrics.ObserveCache("hit")
		return cells, true
	}
}

func (s *Service) store(ctx context.Context, fingerprint string, cells []likert.Cell) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, fingerprint, cells); err != nil {
		log.Warn().Err(err).Msg("Cache store failed")
	}
}

// Run returns a persisted run with its cells.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (*persistence.Run, error) {
	if s.runs == nil {
		return nil, ErrRunStoreDisabled
	}
	return s.runs.Get(ctx, id)
}

// Runs lists recent runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]persistence.Run, error) {
	if s.runs == nil {
		return nil, ErrRunStoreDisabled
	}
	return s.runs.List(ctx, limit)
}
