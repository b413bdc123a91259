package likert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sawpanic/surveyrun/internal/survey"
)

const tolerance = 1e-9

func responses(treatment, prompt, question string, ranks ...int) []survey.Response {
	out := make([]survey.Response, len(ranks))
	for i, r := range ranks {
		out[i] = survey.Response{
			Participant: fmt.Sprintf("%s-%s-%d", treatment, prompt, i),
			Treatment:   treatment,
			Prompt:      prompt,
			Question:    question,
			Rank:        r,
		}
	}
	return out
}

func TestComputeDivergingOffsetsScenario(t *testing.T) {
	set, err := ComputeDivergingOffsets(responses("Control", "P1", "effective", 4, 4, 4, 6), survey.DefaultQuestions())
	require.NoError(t, err)
	require.Equal(t, 7, set.Len())

	get := func(rank int) Cell {
		c, ok := set.Get(Key{"Control", "P1", "effective", rank})
		require.True(t, ok, "rank %d missing", rank)
		return c
	}

	neutral := get(4)
	assert.Equal(t, 3, neutral.Total)
	assert.Equal(t, 4, neutral.GrandTotal)
	assert.InDelta(t, 75.0, neutral.PctOfTotal, tolerance)
	assert.InDelta(t, -37.5, neutral.PctStart, tolerance)
	assert.InDelta(t, 37.5, neutral.PctEnd, tolerance)

	six := get(6)
	assert.Equal(t, 1, six.Total)
	assert.InDelta(t, 25.0, six.PctOfTotal, tolerance)
	assert.InDelta(t, 37.5, six.PctStart, tolerance)
	assert.InDelta(t, 62.5, six.PctEnd, tolerance)

	for _, r := range []int{1, 2, 3} {
		c := get(r)
		assert.Zero(t, c.Total)
		assert.Zero(t, c.PctOfTotal)
		assert.InDelta(t, -37.5, c.PctStart, tolerance, "rank %d", r)
		assert.InDelta(t, -37.5, c.PctEnd, tolerance, "rank %d", r)
	}
	assert.InDelta(t, 37.5, get(5).PctStart, tolerance)
	assert.InDelta(t, 37.5, get(5).PctEnd, tolerance)
	assert.InDelta(t, 62.5, get(7).PctStart, tolerance)
	assert.InDelta(t, 62.5, get(7).PctEnd, tolerance)
}

func TestComputeDivergingOffsetsAbsentGroupCollapsesToZero(t *testing.T) {
	// Treatment B never answered P2, but both axes were observed, so the
	// cross product still holds a (B, P2, effective) bar.
	in := append(responses("A", "P1", "effective", 1, 7), responses("A", "P2", "effective", 2)...)
	in = append(in, responses("B", "P1", "effective", 5)...)

	set, err := ComputeDivergingOffsets(in, survey.DefaultQuestions())
	require.NoError(t, err)
	assert.Equal(t, 2*2*1*7, set.Len())

	bar := set.Group("B", "P2", "effective")
	require.Len(t, bar, 7)
	for _, c := range bar {
		assert.Zero(t, c.PctOfTotal)
		assert.Zero(t, c.PctStart)
		assert.Zero(t, c.PctEnd)
		assert.Zero(t, c.GrandTotal)
	}
}

func TestComputeDivergingOffsetsValidation(t *testing.T) {
	qs := survey.DefaultQuestions()

	t.Run("rank outside domain", func(t *testing.T) {
		in := append(responses("A", "P1", "effective", 4), responses("A", "P1", "writing", 8)...)
		_, err := ComputeDivergingOffsets(in, qs)

		var rankErr *InvalidRankError
		require.True(t, errors.As(err, &rankErr))
		assert.Equal(t, 8, rankErr.Response.Rank)
		assert.ErrorIs(t, err, ErrInvalidRank)
	})

	t.Run("rank zero", func(t *testing.T) {
		_, err := ComputeDivergingOffsets(responses("A", "P1", "effective", 0), qs)
		assert.ErrorIs(t, err, ErrInvalidRank)
	})

	t.Run("unknown question", func(t *testing.T) {
		_, err := ComputeDivergingOffsets(responses("A", "P1", "interest", 4), qs)

		var qErr *InvalidQuestionError
		require.True(t, errors.As(err, &qErr))
		assert.Equal(t, "interest", qErr.Response.Question)
		assert.ErrorIs(t, err, ErrInvalidQuestion)
	})

	t.Run("first offender wins", func(t *testing.T) {
		in := append(responses("A", "P1", "bogus", 4), responses("A", "P1", "effective", 9)...)
		_, err := ComputeDivergingOffsets(in, qs)
		assert.ErrorIs(t, err, ErrInvalidQuestion)
	})

	t.Run("custom domain", func(t *testing.T) {
		five, err := survey.NewRankDomain(1, 5)
		require.NoError(t, err)
		_, err = ComputeDivergingOffsets(responses("A", "P1", "effective", 6), qs, WithRankDomain(five))
		assert.ErrorIs(t, err, ErrInvalidRank)
	})

	t.Run("even domain rejected", func(t *testing.T) {
		_, err := ComputeDivergingOffsets(nil, qs, WithRankDomain(survey.RankDomain{Min: 1, Max: 4}))
		assert.ErrorIs(t, err, survey.ErrInvalidDomain)
	})
}

func TestComputeDivergingOffsetsEmptyInput(t *testing.T) {
	set, err := ComputeDivergingOffsets(nil, survey.DefaultQuestions())
	require.NoError(t, err)
	assert.Zero(t, set.Len())
	assert.Empty(t, set.Cells())
}

func randomResponses(seed int64, n int) []survey.Response {
	rng := rand.New(rand.NewSource(seed))
	treatments := []string{"Control", "Typographical", "Phonological"}
	prompts := []string{"P1", "P2", "P3", "P4"}
	questions := []string{"effective", "intelligence", "writing"}
	out := make([]survey.Response, n)
	for i := range out {
		out[i] = survey.Response{
			Participant: fmt.Sprint(i),
			Treatment:   treatments[rng.Intn(len(treatments))],
			Prompt:      prompts[rng.Intn(len(prompts))],
			Question:    questions[rng.Intn(len(questions))],
			// skew away from the extremes so some ranks go unobserved
			Rank: 2 + rng.Intn(5),
		}
	}
	return out
}

func TestComputeDivergingOffsetsProperties(t *testing.T) {
	domain := survey.DefaultRankDomain()
	set, err := ComputeDivergingOffsets(randomResponses(42, 60), survey.DefaultQuestions())
	require.NoError(t, err)

	treatments, prompts, questions := set.Treatments(), set.Prompts(), set.Questions()
	assert.Equal(t, len(treatments)*len(prompts)*len(questions)*domain.Len(), set.Len(), "completeness")
	assert.Len(t, set.Cells(), set.Len(), "no duplicates")

	for _, tr := range treatments {
		for _, p := range prompts {
			for _, q := range questions {
				bar := set.Group(tr, p, q)
				require.Len(t, bar, domain.Len())
				byRank := make(map[int]Cell, len(bar))
				var sum float64
				observed := false
				for _, c := range bar {
					byRank[c.Rank] = c
					sum += c.PctOfTotal
					observed = observed || c.Total > 0
					assert.InDelta(t, c.PctOfTotal, c.Width(), tolerance)
					if c.Total == 0 {
						assert.Zero(t, c.PctOfTotal)
						assert.InDelta(t, c.PctStart, c.PctEnd, tolerance, "zero-width padding")
					}
				}

				n := byRank[4]
				assert.InDelta(t, -n.PctEnd, n.PctStart, tolerance, "neutral centred")
				for _, r := range []int{1, 2, 3} {
					assert.InDelta(t, byRank[r+1].PctStart, byRank[r].PctEnd, tolerance, "contiguous below neutral")
				}
				for _, r := range []int{5, 6, 7} {
					assert.InDelta(t, byRank[r-1].PctEnd, byRank[r].PctStart, tolerance, "contiguous above neutral")
				}
				if observed {
					assert.InDelta(t, 100.0, sum, 1e-6, "normalised")
					assert.InDelta(t, 100.0, byRank[7].PctEnd-byRank[1].PctStart, 1e-6, "partition")
				} else {
					assert.Zero(t, sum)
				}
			}
		}
	}
}

func TestComputeDivergingOffsetsParallelMatchesSerial(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := randomResponses(7, 500)
	serial, err := ComputeDivergingOffsets(in, survey.DefaultQuestions())
	require.NoError(t, err)
	parallel, err := ComputeDivergingOffsets(in, survey.DefaultQuestions(), WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, serial.Cells(), parallel.Cells())
}

func TestCellSetOrderingAndFilter(t *testing.T) {
	in := append(responses("B", "P2", "writing", 3), responses("A", "P1", "effective", 4)...)
	set, err := ComputeDivergingOffsets(in, survey.DefaultQuestions())
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A"}, set.Treatments(), "first-seen order")
	assert.Equal(t, []string{"effective", "writing"}, set.Questions(), "question set order")

	cells := set.Cells()
	require.Len(t, cells, 2*2*2*7)
	assert.Equal(t, Key{"B", "P2", "effective", 1}, cells[0].Key())
	assert.Equal(t, Key{"B", "P2", "writing", 1}, cells[7].Key())

	writing := set.Filter("writing")
	assert.Len(t, writing, 2*2*7)
	for _, c := range writing {
		assert.Equal(t, "writing", c.Question)
	}
	assert.Empty(t, set.Filter("meet"))
}

func TestFromCellsRoundTrip(t *testing.T) {
	set, err := ComputeDivergingOffsets(randomResponses(3, 40), survey.DefaultQuestions())
	require.NoError(t, err)

	rebuilt := FromCells(set.Cells(), set.Domain())
	assert.Equal(t, set.Cells(), rebuilt.Cells())
	assert.Equal(t, set.Treatments(), rebuilt.Treatments())
}

func TestNeutralNeverNegativeZero(t *testing.T) {
	set, err := ComputeDivergingOffsets(responses("A", "P1", "effective", 1), survey.DefaultQuestions())
	require.NoError(t, err)

	c, _ := set.Get(Key{"A", "P1", "effective", 4})
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"pct_start":0,`)
}
