package handlers

import (
	"net/http"
	"time"

	"github.com/sawpanic/surveyrun/internal/persistence"
)

// HealthResponse reports the state of the API and its backing stores
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Database  *persistence.HealthCheck `json:"database,omitempty"`
	Cache     string                   `json:"cache"`
}

// Health handles GET /health. A failing run store or an open cache
// breaker degrades the status but still answers 200, since transforms
// keep working without either.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Cache:     "disabled",
	}

	if h.dbHealth != nil {
		check := h.dbHealth.Health(r.Context())
		resp.Database = &check
		if !check.Healthy {
			resp.Status = "degraded"
		}
	}

	if h.cacheState != nil {
		resp.Cache = h.cacheState()
		if resp.Cache == "open" {
			resp.Status = "degraded"
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}
