package likert

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/surveyrun/internal/survey"
)

// DefaultVarianceColumns are the Likert items every participant rated per
// prompt.
var DefaultVarianceColumns = []string{"Interest", "Effective", "Intelligence", "Writing", "Meet"}

// RowVariance is the population variance of one row's Likert answers. A
// participant who gave the same answer to every item scores 0.
func RowVariance(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return stat.PopVariance(scores, nil)
}

// UniformCount is one bar of the uniform-response histogram: how many
// participants of a cohort straight-lined exactly UniformResponses rows.
type UniformCount struct {
	Cohort           string `json:"cohort"`
	UniformResponses int    `json:"uniform_responses"`
	Participants     int    `json:"participants"`
}

// UniformResponses counts, per participant, the rows whose answers across
// cols have zero variance, then histograms those counts per cohort.
// Participants with no uniform row are left out. Blank cells are ignored;
// a row with no answers at all is skipped.
func UniformResponses(rows []survey.Row, cols []string, cohortOf func(survey.Row) string) []UniformCount {
	type participant struct {
		cohort string
		id     string
	}
	uniform := make(map[participant]int)

	scores := make([]float64, 0, len(cols))
	for _, row := range rows {
		scores = scores[:0]
		for _, col := range cols {
			if v, ok := row.Float(col); ok {
				scores = append(scores, v)
			}
		}
		if len(scores) == 0 {
			continue
		}
		if RowVariance(scores) == 0 {
			uniform[participant{cohortOf(row), row.Participant}]++
		}
	}

	type bucket struct {
		cohort string
		n      int
	}
	hist := make(map[bucket]int)
	for p, n := range uniform {
		hist[bucket{p.cohort, n}]++
	}

	out := make([]UniformCount, 0, len(hist))
	for b, count := range hist {
		out = append(out, UniformCount{Cohort: b.cohort, UniformResponses: b.n, Participants: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cohort != out[j].Cohort {
			return out[i].Cohort < out[j].Cohort
		}
		return out[i].UniformResponses < out[j].UniformResponses
	})
	return out
}

// RowScore pairs a row with its Likert variance, for density plots.
type RowScore struct {
	Participant string  `json:"participant"`
	Prompt      string  `json:"prompt"`
	Cohort      string  `json:"cohort"`
	Variance    float64 `json:"likert_var"`
}

// RowVariances scores every row that answered at least one of cols.
func RowVariances(rows []survey.Row, cols []string, cohortOf func(survey.Row) string) []RowScore {
	out := make([]RowScore, 0, len(rows))
	for _, row := range rows {
		var scores []float64
		for _, col := range cols {
			if v, ok := row.Float(col); ok {
				scores = append(scores, v)
			}
		}
		if len(scores) == 0 {
			continue
		}
		out = append(out, RowScore{
			Participant: row.Participant,
			Prompt:      row.Prompt,
			Cohort:      cohortOf(row),
			Variance:    RowVariance(scores),
		})
	}
	return out
}
