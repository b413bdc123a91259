package application

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/surveyrun/internal/config"
	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/persistence"
)

const export = `ROWID,Start Date,Treatment,Prompt,Effective,Intelligence,Writing
1,2021-04-01 10:00:00,Control,P1,4,5,6
1,2021-04-01 10:00:00,Control,P2,4,,7
2,2021-04-07 09:30:00,Typographical,P1,2,3,4
`

type memCache struct {
	entries map[string][]likert.Cell
	getErr  error
	sets    int
}

func (m *memCache) Get(_ context.Context, fp string) ([]likert.Cell, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	cells, ok := m.entries[fp]
	return cells, ok, nil
}

func (m *memCache) Set(_ context.Context, fp string, cells []likert.Cell) error {
	m.entries[fp] = cells
	m.sets++
	return nil
}

type memRuns struct {
	saved []*persistence.Run
}

func (m *memRuns) Save(_ context.Context, run *persistence.Run) error {
	run.ID = uuid.New()
	m.saved = append(m.saved, run)
	return nil
}

func (m *memRuns) Get(_ context.Context, id uuid.UUID) (*persistence.Run, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, persistence.ErrNotFound
}

func (m *memRuns) List(_ context.Context, _ int) ([]persistence.Run, error) {
	var out []persistence.Run
	for _, r := range m.saved {
		out = append(out, *r)
	}
	return out, nil
}

func TestDivergeComputesThenHitsCache(t *testing.T) {
	ctx := context.Background()
	mc := &memCache{entries: map[string][]likert.Cell{}}
	svc := NewService(config.Default(), Deps{Cache: mc})

	ds, err := svc.Load(ctx, "export.csv", strings.NewReader(export))
	require.NoError(t, err)

	first, err := svc.Diverge(ctx, ds)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 8, first.Responses)
	cells := first.Cells
	assert.Equal(t, len(cells.Treatments())*len(cells.Prompts())*len(cells.Questions())*7, cells.Len())
	assert.Equal(t, 1, mc.sets)
	assert.Empty(t, first.RunID)

	second, err := svc.Diverge(ctx, ds)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Cells.Cells(), second.Cells.Cells())
	assert.Equal(t, first.Cells.Treatments(), second.Cells.Treatments())

	reg := svc.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 8.0, testutil.ToFloat64(reg.ResponsesProcessed), "cache hits skip the transform")
}

func TestDivergeCacheErrorFallsBack(t *testing.T) {
	ctx := context.Background()
	mc := &memCache{entries: map[string][]likert.Cell{}, getErr: errors.New("breaker open")}
	svc := NewService(config.Default(), Deps{Cache: mc})

	ds, err := svc.Load(ctx, "export.csv", strings.NewReader(export))
	require.NoError(t, err)

	res, err := svc.Diverge(ctx, ds)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics().CacheLookups.WithLabelValues("error")))
}

func TestDivergePersistsRun(t *testing.T) {
	ctx := context.Background()
	runs := &memRuns{}
	svc := NewService(config.Default(), Deps{Runs: runs})

	ds, err := svc.Load(ctx, "export.csv", strings.NewReader(export))
	require.NoError(t, err)

	res, err := svc.Diverge(ctx, ds)
	require.NoError(t, err)
	require.Len(t, runs.saved, 1)
	assert.Equal(t, runs.saved[0].ID.String(), res.RunID)
	assert.Equal(t, "export.csv", runs.saved[0].Source)
	assert.Equal(t, 7, runs.saved[0].RankMax)
	assert.Len(t, runs.saved[0].Cells, res.Cells.Len())

	got, err := svc.Run(ctx, runs.saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, got.ID.String())
}

func TestDivergeRejectsOutOfDomainRank(t *testing.T) {
	ctx := context.Background()
	svc := NewService(config.Default(), Deps{})

	ds, err := svc.Load(ctx, "bad.csv", strings.NewReader("ROWID,Treatment,Prompt,Effective\n1,Control,P1,9\n"))
	require.NoError(t, err)

	_, err = svc.Diverge(ctx, ds)
	var rankErr *likert.InvalidRankError
	require.ErrorAs(t, err, &rankErr)
	assert.Equal(t, 9, rankErr.Response.Rank)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics().ValidationErrors.WithLabelValues("invalid_rank")))
}

func TestRunsWithoutStore(t *testing.T) {
	svc := NewService(config.Default(), Deps{})

	_, err := svc.Runs(context.Background(), 10)
	assert.ErrorIs(t, err, ErrRunStoreDisabled)
	_, err = svc.Run(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunStoreDisabled)
}
