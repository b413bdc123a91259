package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sawpanic/surveyrun/internal/application"
	"github.com/sawpanic/surveyrun/internal/persistence"
)

// RunsResponse lists persisted runs without their cells
type RunsResponse struct {
	Runs  []persistence.Run `json:"runs"`
	Count int               `json:"count"`
}

// GetRun handles GET /v1/runs/{id}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "bad_input", "run id must be a uuid")
		return
	}

	run, err := h.svc.Run(r.Context(), id)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /v1/runs with an optional limit (1-100, default 20)
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}

	h.writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

func (h *Handlers) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, application.ErrRunStoreDisabled):
		h.writeError(w, r, http.StatusServiceUnavailable, "run_store_disabled", err.Error())
	case errors.Is(err, persistence.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "run_not_found", err.Error())
	default:
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
