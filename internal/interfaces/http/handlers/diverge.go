package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/render"
)

// Diverge handles POST /v1/diverge. The body is a CSV export; the
// optional question parameter narrows the response to one question and
// format=csv returns CSV instead of JSON.
func (h *Handlers) Diverge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	question := query.Get("question")
	if question != "" && !h.svc.Questions().Has(question) {
		h.writeError(w, r, http.StatusBadRequest, "invalid_question",
			fmt.Sprintf("question %q is not configured", question))
		return
	}

	format := render.FormatJSON
	if f := query.Get("format"); f != "" {
		parsed, err := render.ParseFormat(f, false)
		if err != nil || parsed == render.FormatTable {
			h.writeError(w, r, http.StatusBadRequest, "bad_input", "format must be json or csv")
			return
		}
		format = parsed
	}

	source := query.Get("source")
	if source == "" {
		source = "upload"
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	ds, err := h.svc.Load(r.Context(), source, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("export exceeds %d bytes", h.maxBodyBytes))
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "bad_input", err.Error())
		return
	}

	result, err := h.svc.Diverge(r.Context(), ds)
	switch {
	case errors.Is(err, likert.ErrInvalidRank):
		h.writeError(w, r, http.StatusBadRequest, "invalid_rank", err.Error())
		return
	case errors.Is(err, likert.ErrInvalidQuestion):
		h.writeError(w, r, http.StatusBadRequest, "invalid_question", err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Diverge failed")
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", "transform failed")
		return
	}

	cells := result.Cells.Cells()
	if question != "" {
		cells = result.Cells.Filter(question)
	}

	if format == render.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		if result.RunID != "" {
			w.Header().Set("X-Run-ID", result.RunID)
		}
		w.WriteHeader(http.StatusOK)
		if err := render.Write(w, render.FormatCSV, nil, render.CellsTable(cells)); err != nil {
			log.Warn().Err(err).Msg("Failed to stream csv")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, render.CellsDocument{
		RunID:  result.RunID,
		Cached: result.Cached,
		Cells:  cells,
	})
}

// Schema handles GET /v1/schema
func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	schema, err := render.Schema()
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(schema)
}
