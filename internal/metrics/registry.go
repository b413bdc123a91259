package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/sawpanic/surveyrun/internal/likert"
)

// Registry holds all Prometheus metrics for surveyrun
type Registry struct {
	reg *prometheus.Registry

	// Transform metrics
	TransformDuration  *prometheus.HistogramVec
	ResponsesProcessed prometheus.Counter
	CellsEmitted       prometheus.Counter
	ValidationErrors   *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec

	// Persistence metrics
	RunsPersisted prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	RateLimited  prometheus.Counter
}

// NewRegistry creates a registry with every surveyrun collector registered
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		TransformDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "surveyrun_transform_duration_seconds",
				Help:    "Duration of the diverging-likert transform",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"result"},
		),

		ResponsesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "surveyrun_responses_processed_total",
				Help: "Responses fed into the transform",
			},
		),

		CellsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "surveyrun_cells_emitted_total",
				Help: "Diverging cells produced, including padding",
			},
		),

		ValidationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyrun_validation_errors_total",
				Help: "Rejected inputs by error kind",
			},
			[]string{"kind"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyrun_cache_lookups_total",
				Help: "Cell cache lookups by result",
			},
			[]string{"result"},
		),

		RunsPersisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "surveyrun_runs_persisted_total",
				Help: "Runs written to the run store",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "surveyrun_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "surveyrun_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		RateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "surveyrun_http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
	}

	r.reg.MustRegister(
		r.TransformDuration,
		r.ResponsesProcessed,
		r.CellsEmitted,
		r.ValidationErrors,
		r.CacheLookups,
		r.RunsPersisted,
		r.HTTPRequests,
		r.HTTPDuration,
		r.RateLimited,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveTransform records one transform invocation
func (r *Registry) ObserveTransform(elapsed time.Duration, responses, cells int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		r.ValidationErrors.WithLabelValues(ErrorKind(err)).Inc()
	}
	r.TransformDuration.WithLabelValues(result).Observe(elapsed.Seconds())
	r.ResponsesProcessed.Add(float64(responses))
	r.CellsEmitted.Add(float64(cells))
}

// ObserveCache records a cache lookup: hit, miss or error
func (r *Registry) ObserveCache(result string) {
	r.CacheLookups.WithLabelValues(result).Inc()
}

// ErrorKind maps transform errors to a metric label
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, likert.ErrInvalidRank):
		return "invalid_rank"
	case errors.Is(err, likert.ErrInvalidQuestion):
		return "invalid_question"
	default:
		return "other"
	}
}

// Snapshot gathers the registry and sums every sample per metric family.
// Histograms report their observation count.
func (r *Registry) Snapshot() (map[string]float64, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			total += sampleValue(mf.GetType(), m)
		}
		out[mf.GetName()] = total
	}
	return out, nil
}

func sampleValue(kind dto.MetricType, m *dto.Metric) float64 {
	switch kind {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	case dto.MetricType_SUMMARY:
		return float64(m.GetSummary().GetSampleCount())
	default:
		return m.GetUntyped().GetValue()
	}
}
