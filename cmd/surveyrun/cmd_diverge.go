package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/surveyrun/internal/application"
	"github.com/sawpanic/surveyrun/internal/cache"
	"github.com/sawpanic/surveyrun/internal/infrastructure/db"
	"github.com/sawpanic/surveyrun/internal/metrics"
	"github.com/sawpanic/surveyrun/internal/render"
)

func (a *app) divergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diverge",
		Short: "Compute diverging Likert bar segments",
		Long: `Compute one segment per treatment, prompt, question and rank. The neutral
rank is centred on zero, lower ranks extend left and higher ranks right,
in percent of each bar's responses.

Examples:
  surveyrun diverge --input export.csv
  surveyrun diverge --input export.csv --question effective --format csv --out effective.csv
  surveyrun diverge --input export.csv --cache --persist`,
		RunE: a.runDiverge,
	}

	cmd.Flags().String("input", "", "Survey export CSV (required)")
	cmd.Flags().String("question", "", "Only emit cells for this question label")
	cmd.Flags().Int("workers", 0, "Parallel bar folds (overrides transform.workers)")
	cmd.Flags().Bool("cache", false, "Use the redis cell cache even if cache.enabled is false")
	cmd.Flags().Bool("persist", false, "Save the run to postgres even if database.enabled is false")
	addOutputFlags(cmd)
	cmd.MarkFlagRequired("input")

	return cmd
}

func (a *app) runDiverge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input, _ := cmd.Flags().GetString("input")
	question, _ := cmd.Flags().GetString("question")
	useCache, _ := cmd.Flags().GetBool("cache")
	persist, _ := cmd.Flags().GetBool("persist")
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		a.cfg.Transform.Workers = workers
	}

	w, err := a.wire(ctx, useCache, persist, nil)
	if err != nil {
		return err
	}
	defer w.Close()
	svc := w.svc

	if question != "" && !svc.Questions().Has(question) {
		return fmt.Errorf("question %q is not configured (have %v)", question, svc.Questions().Labels())
	}

	ds, err := svc.LoadFile(ctx, input)
	if err != nil {
		return err
	}

	result, err := svc.Diverge(ctx, ds)
	if err != nil {
		return err
	}

	cells := result.Cells.Cells()
	if question != "" {
		cells = result.Cells.Filter(question)
	}

	format, out := outputFlags(cmd)
	return emit(cmd, format, out, render.CellsDocument{
		RunID:  result.RunID,
		Cached: result.Cached,
		Cells:  cells,
	}, render.CellsTable(cells))
}

// wiring is an application service plus the backing stores it was
// built with, so callers can report on them and close them.
type wiring struct {
	svc     *application.Service
	cache   *cache.RedisCache
	store   *db.Manager
	closers []func() error
}

func (w *wiring) Close() {
	for _, c := range w.closers {
		c()
	}
}

// wire builds the service with the optional cache and run store. The
// cache is best effort; a requested run store that cannot be reached is
// an error.
func (a *app) wire(ctx context.Context, useCache, persist bool, reg *metrics.Registry) (*wiring, error) {
	w := &wiring{}
	deps := application.Deps{Metrics: reg}

	if useCache || a.cfg.Cache.Enabled {
		c, err := cache.NewRedisCache(ctx, a.cfg.Cache)
		if err != nil {
			log.Warn().Err(err).Msg("Cache unavailable, continuing without it")
		} else {
			w.cache = c
			w.closers = append(w.closers, c.Close)
			deps.Cache = c
		}
	}

	if persist || a.cfg.Database.Enabled {
		manager, err := a.runStore(ctx)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.store = manager
		w.closers = append(w.closers, manager.Close)
		deps.Runs = manager.Runs()
	}

	w.svc = application.NewService(a.cfg, deps)
	return w, nil
}

// runStore opens and migrates postgres regardless of database.enabled
func (a *app) runStore(ctx context.Context) (*db.Manager, error) {
	dbCfg := a.cfg.Database
	dbCfg.Enabled = true

	manager, err := db.NewManager(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	if err := manager.Migrate(ctx); err != nil {
		manager.Close()
		return nil, err
	}
	return manager, nil
}
