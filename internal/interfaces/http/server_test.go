package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/surveyrun/internal/application"
	"github.com/sawpanic/surveyrun/internal/config"
	"github.com/sawpanic/surveyrun/internal/interfaces/http/handlers"
	"github.com/sawpanic/surveyrun/internal/metrics"
	"github.com/sawpanic/surveyrun/internal/render"
)

const export = `ROWID,Start Date,Treatment,Prompt,Effective,Intelligence,Writing
1,2021-04-01 10:00:00,Control,P1,4,4,4
2,2021-04-01 11:00:00,Control,P1,4,5,6
3,2021-04-07 09:30:00,Control,P1,4,3,2
4,2021-04-07 09:45:00,Control,P1,6,4,4
`

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *metrics.Registry) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	reg := metrics.NewRegistry()
	svc := application.NewService(cfg, application.Deps{Metrics: reg})
	h := handlers.NewHandlers(handlers.Deps{
		Service:      svc,
		CacheState:   func() string { return "closed" },
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	return NewServer(cfg.Server, h, reg), reg
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDivergeEndpoint(t *testing.T) {
	s, reg := newTestServer(t, nil)

	rec := do(s, "POST", "/v1/diverge?question=effective", export)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var doc render.CellsDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Cells, 7)
	assert.Empty(t, doc.RunID, "no run store configured")

	neutral := doc.Cells[3]
	assert.Equal(t, 4, neutral.Rank)
	assert.Equal(t, 3, neutral.Total)
	assert.Equal(t, -37.5, neutral.PctStart)
	assert.Equal(t, 37.5, neutral.PctEnd)
	six := doc.Cells[5]
	assert.Equal(t, 37.5, six.PctStart)
	assert.Equal(t, 62.5, six.PctEnd)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.HTTPRequests.WithLabelValues("/v1/diverge", "200")))
}

func TestDivergeEndpointCSV(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(s, "POST", "/v1/diverge?question=writing&format=csv", export)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 8, "header plus seven ranks")
	assert.True(t, strings.HasPrefix(lines[0], "treatment,prompt,question,rank"))
}

func TestDivergeEndpointErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	cases := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"out of domain rank", "/v1/diverge", "ROWID,Treatment,Prompt,Effective\n1,Control,P1,8\n", 400, "invalid_rank"},
		{"unknown question filter", "/v1/diverge?question=meet", export, 400, "invalid_question"},
		{"missing treatment column", "/v1/diverge", "ROWID,Prompt,Effective\n1,P1,4\n", 400, "bad_input"},
		{"empty body", "/v1/diverge", "", 400, "bad_input"},
		{"table format", "/v1/diverge?format=table", export, 400, "bad_input"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(s, "POST", tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code)

			var resp handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
		})
	}
}

func TestDivergeEndpointBodyLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 32 })

	rec := do(s, "POST", "/v1/diverge", export)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, reg := newTestServer(t, func(c *config.Config) {
		c.Server.RPS = 0.001
		c.Server.Burst = 2
	})

	assert.Equal(t, http.StatusOK, do(s, "GET", "/v1/schema", "").Code)
	assert.Equal(t, http.StatusOK, do(s, "GET", "/v1/schema", "").Code)
	rec := do(s, "GET", "/v1/schema", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RateLimited))

	assert.Equal(t, http.StatusOK, do(s, "GET", "/health", "").Code, "health is not rate limited")
}

func TestRunsWithoutStore(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(s, "GET", "/v1/runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(s, "GET", "/v1/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, "GET", "/v1/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "closed", health.Cache)
	assert.Nil(t, health.Database)

	rec = do(s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `surveyrun_http_requests_total{code="200",route="/health"} 1`)
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(s, "GET", "/v2/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint_not_found")
}
