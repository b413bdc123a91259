package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/surveyrun/internal/survey"
)

// Bin is one bar of a column histogram for one cohort. Lo is inclusive,
// Hi exclusive except for the last bin.
type Bin struct {
	Cohort string  `json:"cohort"`
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
	Count  int     `json:"count"`
}

// Histogram splits the numeric range of col into equal-width bins and
// counts the values of each cohort per bin. Every cohort shares the same
// edges; empty bins are left out.
func Histogram(ds *survey.Dataset, col string, bins int, cohortOf func(survey.Row) string) []Bin {
	if bins < 1 {
		bins = 1
	}

	byCohort := make(map[string][]float64)
	var all []float64
	for _, row := range ds.Rows {
		v, ok := row.Float(col)
		if !ok {
			continue
		}
		c := cohortOf(row)
		byCohort[c] = append(byCohort[c], v)
		all = append(all, v)
	}
	if len(all) == 0 {
		return nil
	}

	lo, hi := floats.Min(all), floats.Max(all)
	if hi == lo {
		hi = lo + 1
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	dividers := append([]float64(nil), edges...)
	// stat.Histogram needs the maximum strictly inside the last bin
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	cohorts := make([]string, 0, len(byCohort))
	for c := range byCohort {
		cohorts = append(cohorts, c)
	}
	sort.Strings(cohorts)

	var out []Bin
	for _, c := range cohorts {
		values := byCohort[c]
		sort.Float64s(values)
		counts := stat.Histogram(nil, dividers, values, nil)
		for i, n := range counts {
			if n == 0 {
				continue
			}
			out = append(out, Bin{Cohort: c, Lo: edges[i], Hi: edges[i+1], Count: int(n)})
		}
	}
	return out
}
