package likert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/surveyrun/internal/survey"
)

func likertRow(participant, cohort string, scores map[string]string) survey.Row {
	values := map[string]string{"cohort": cohort}
	for k, v := range scores {
		values[k] = v
	}
	return survey.NewRow(participant, "Control", "P1", time.Time{}, values)
}

func cohortColumn(row survey.Row) string {
	v, _ := row.Value("cohort")
	return v
}

func TestRowVariance(t *testing.T) {
	assert.Zero(t, RowVariance(nil))
	assert.Zero(t, RowVariance([]float64{4, 4, 4, 4, 4}))
	// population variance of 1..5 is 2
	assert.InDelta(t, 2.0, RowVariance([]float64{1, 2, 3, 4, 5}), 1e-12)
}

func TestUniformResponses(t *testing.T) {
	same := map[string]string{"Interest": "4", "Effective": "4", "Intelligence": "4", "Writing": "4", "Meet": "4"}
	mixed := map[string]string{"Interest": "1", "Effective": "4", "Intelligence": "4", "Writing": "4", "Meet": "7"}
	partial := map[string]string{"Interest": "6", "Effective": "", "Intelligence": "6", "Writing": "6", "Meet": "6"}

	rows := []survey.Row{
		likertRow("p1", "XLab", same),
		likertRow("p1", "XLab", same),
		likertRow("p1", "XLab", mixed),
		likertRow("p2", "XLab", partial),
		likertRow("p3", "XLab", mixed),
		likertRow("p4", "Amazon", same),
		likertRow("p5", "Amazon", map[string]string{}),
	}

	got := UniformResponses(rows, DefaultVarianceColumns, cohortColumn)
	assert.Equal(t, []UniformCount{
		{Cohort: "Amazon", UniformResponses: 1, Participants: 1},
		{Cohort: "XLab", UniformResponses: 1, Participants: 1},
		{Cohort: "XLab", UniformResponses: 2, Participants: 1},
	}, got)
}

func TestRowVariances(t *testing.T) {
	rows := []survey.Row{
		likertRow("p1", "XLab", map[string]string{"Interest": "1", "Meet": "3"}),
		likertRow("p2", "XLab", map[string]string{}),
	}
	got := RowVariances(rows, DefaultVarianceColumns, cohortColumn)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "p1", got[0].Participant)
		assert.InDelta(t, 1.0, got[0].Variance, 1e-12)
	}
}
