// Package stats computes descriptive statistics over export columns.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/surveyrun/internal/survey"
)

// Summary describes the numeric values of one column.
type Summary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

var identityColumns = map[string]bool{
	survey.ColParticipant: true,
	survey.ColTreatment:   true,
	survey.ColPrompt:      true,
	survey.ColStartDate:   true,
	"rowid":               true,
}

// Describe summarises cols in the given order. With no cols, every
// non-identity column holding at least one number is described.
// Blank and non-numeric cells are ignored; a column with no numbers is
// left out.
func Describe(ds *survey.Dataset, cols []string) []Summary {
	if len(cols) == 0 {
		for _, c := range ds.Columns {
			if !identityColumns[survey.NormalizeColumn(c)] {
				cols = append(cols, c)
			}
		}
	}

	out := make([]Summary, 0, len(cols))
	for _, col := range cols {
		var values []float64
		for _, row := range ds.Rows {
			if v, ok := row.Float(col); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, summarise(col, values))
	}
	return out
}

func summarise(col string, values []float64) Summary {
	sort.Float64s(values)
	s := Summary{
		Column: col,
		Count:  len(values),
		Min:    values[0],
		Max:    values[len(values)-1],
		P25:    Quantile(values, 0.25),
		P50:    Quantile(values, 0.5),
		P75:    Quantile(values, 0.75),
	}
	// sample std is undefined for one value; report 0
	if len(values) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(values, nil)
	} else {
		s.Mean = values[0]
	}
	return s
}

// Quantile interpolates linearly between the two order statistics around
// rank p*(n-1) of sorted. sorted must be ascending and non-empty.
func Quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
