package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/survey"
)

func TestObserveTransform(t *testing.T) {
	r := NewRegistry()

	r.ObserveTransform(2*time.Millisecond, 4, 7, nil)
	rankErr := &likert.InvalidRankError{Response: survey.Response{Rank: 9}, Domain: survey.DefaultRankDomain()}
	r.ObserveTransform(time.Millisecond, 0, 0, fmt.Errorf("diverge: %w", rankErr))

	assert.Equal(t, 4.0, testutil.ToFloat64(r.ResponsesProcessed))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.CellsEmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ValidationErrors.WithLabelValues("invalid_rank")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ValidationErrors.WithLabelValues("invalid_question")))

	snap, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap["surveyrun_transform_duration_seconds"])
	assert.Equal(t, 4.0, snap["surveyrun_responses_processed_total"])
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "invalid_question", ErrorKind(&likert.InvalidQuestionError{}))
	assert.Equal(t, "other", ErrorKind(io.EOF))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveCache("hit")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `surveyrun_cache_lookups_total{result="hit"} 1`)
}
