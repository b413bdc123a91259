package render

import (
	"strconv"
	"time"

	"github.com/sawpanic/surveyrun/internal/demographics"
	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/persistence"
	"github.com/sawpanic/surveyrun/internal/stats"
)

func ftoa(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

// CellsTable lists cells in plotting order.
func CellsTable(cells []likert.Cell) Table {
	t := Table{Header: []string{"treatment", "prompt", "question", "rank", "total", "grand_total", "pct_of_total", "pct_start", "pct_end"}}
	for _, c := range cells {
		t.Rows = append(t.Rows, []string{
			c.Treatment, c.Prompt, c.Question,
			strconv.Itoa(c.Rank), strconv.Itoa(c.Total), strconv.Itoa(c.GrandTotal),
			ftoa(c.PctOfTotal, 2), ftoa(c.PctStart, 2), ftoa(c.PctEnd, 2),
		})
	}
	return t
}

func SummaryTable(summaries []stats.Summary) Table {
	t := Table{Header: []string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max"}}
	for _, s := range summaries {
		t.Rows = append(t.Rows, []string{
			s.Column, strconv.Itoa(s.Count),
			ftoa(s.Mean, 3), ftoa(s.Std, 3), ftoa(s.Min, 3),
			ftoa(s.P25, 3), ftoa(s.P50, 3), ftoa(s.P75, 3), ftoa(s.Max, 3),
		})
	}
	return t
}

func UniformTable(counts []likert.UniformCount) Table {
	t := Table{Header: []string{"cohort", "uniform_responses", "participants"}}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{c.Cohort, strconv.Itoa(c.UniformResponses), strconv.Itoa(c.Participants)})
	}
	return t
}

func RowScoreTable(scores []likert.RowScore) Table {
	t := Table{Header: []string{"participant", "prompt", "cohort", "likert_var"}}
	for _, s := range scores {
		t.Rows = append(t.Rows, []string{s.Participant, s.Prompt, s.Cohort, ftoa(s.Variance, 4)})
	}
	return t
}

func ParticipantTable(counts []demographics.ParticipantCount) Table {
	t := Table{Header: []string{"treatment", "cohort", "participants"}}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{c.Treatment, c.Cohort, strconv.Itoa(c.Participants)})
	}
	return t
}

func MissingTable(missing []demographics.MissingStat) Table {
	t := Table{Header: []string{"column", "pct_missing", "missing", "non_null", "density"}}
	for _, s := range missing {
		t.Rows = append(t.Rows, []string{s.Column, ftoa(s.PctMissing, 2), strconv.Itoa(s.Missing), strconv.Itoa(s.NonNull), ftoa(s.Density, 4)})
	}
	return t
}

// ParetoTable prefixes each bar with the column it was computed for.
func ParetoTable(column string, bars []demographics.ParetoBar) Table {
	t := Table{Header: []string{"column", "value", "count", "share", "cumulative"}}
	for _, b := range bars {
		t.Rows = append(t.Rows, []string{column, b.Value, strconv.Itoa(b.Count), ftoa(b.Share, 4), ftoa(b.Cumulative, 4)})
	}
	return t
}

func RunsTable(runs []persistence.Run) Table {
	t := Table{Header: []string{"id", "created_at", "source", "responses", "cells", "ranks"}}
	for _, r := range runs {
		t.Rows = append(t.Rows, []string{
			r.ID.String(), r.CreatedAt.UTC().Format(time.RFC3339), r.Source,
			strconv.Itoa(r.Responses), strconv.Itoa(r.CellCount), r.Domain().String(),
		})
	}
	return t
}

func ValueCountTable(column string, counts []demographics.ValueCount) Table {
	t := Table{Header: []string{"column", "value", "count"}}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{column, c.Value, strconv.Itoa(c.Count)})
	}
	return t
}

func HistogramTable(column string, bins []stats.Bin) Table {
	t := Table{Header: []string{"cohort", column + "_from", column + "_to", "count"}}
	for _, b := range bins {
		t.Rows = append(t.Rows, []string{b.Cohort, ftoa(b.Lo, 2), ftoa(b.Hi, 2), strconv.Itoa(b.Count)})
	}
	return t
}
