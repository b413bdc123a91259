package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sawpanic/surveyrun/internal/application"
	"github.com/sawpanic/surveyrun/internal/persistence"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the request id on ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored on ctx, or "unknown"
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Deps wires the handlers to the application
type Deps struct {
	Service      *application.Service
	DBHealth     persistence.RepositoryHealth
	CacheState   func() string
	MaxBodyBytes int64
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	svc          *application.Service
	dbHealth     persistence.RepositoryHealth
	cacheState   func() string
	maxBodyBytes int64
	started      time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		svc:          deps.Service,
		dbHealth:     deps.DBHealth,
		cacheState:   deps.CacheState,
		maxBodyBytes: deps.MaxBodyBytes,
		started:      time.Now(),
	}
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}
