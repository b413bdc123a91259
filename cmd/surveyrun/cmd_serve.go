package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/sawpanic/surveyrun/internal/interfaces/http"
	"github.com/sawpanic/surveyrun/internal/interfaces/http/handlers"
	"github.com/sawpanic/surveyrun/internal/metrics"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve the diverging transform over HTTP:

  POST /v1/diverge      CSV export in, cells out
  GET  /v1/runs[/{id}]  persisted runs (needs database.enabled)
  GET  /v1/schema       JSON Schema of the diverge response
  GET  /health          liveness and backing store state
  GET  /metrics         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().String("host", "", "Listen host (overrides server.host)")
	cmd.Flags().Int("port", 0, "Listen port (overrides server.port)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		a.cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		a.cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	w, err := a.wire(ctx, false, false, reg)
	if err != nil {
		return err
	}
	defer w.Close()

	deps := handlers.Deps{
		Service:      w.svc,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
	}
	if w.store != nil {
		deps.DBHealth = w.store.Health()
	}
	if w.cache != nil {
		deps.CacheState = w.cache.State
	}

	server := httpapi.NewServer(a.cfg.Server, handlers.NewHandlers(deps), reg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
