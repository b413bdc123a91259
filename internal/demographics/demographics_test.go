package demographics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/surveyrun/internal/survey"
)

var cohorts = Cohorts{
	Cutoff: time.Date(2021, 4, 5, 0, 0, 0, 0, time.UTC),
	Before: "Amazon",
	After:  "XLab",
}

func day(d int) time.Time {
	return time.Date(2021, 4, d, 12, 0, 0, 0, time.UTC)
}

func row(participant, treatment string, started time.Time, values map[string]string) survey.Row {
	return survey.NewRow(participant, treatment, "P1", started, values)
}

func TestCohortsOf(t *testing.T) {
	assert.Equal(t, "Amazon", cohorts.Of(row("1", "Control", day(4), nil)))
	assert.Equal(t, "XLab", cohorts.Of(row("1", "Control", day(5), nil)), "cutoff day belongs to the later cohort")
	assert.Equal(t, MissingLabel, cohorts.Of(row("1", "Control", time.Time{}, nil)))
}

func TestCohortsOfDay(t *testing.T) {
	assert.Equal(t, "Amazon", cohorts.OfDay(row("1", "Control", day(4), nil)))
	assert.Equal(t, "Amazon", cohorts.OfDay(row("1", "Control", time.Date(2021, 4, 5, 23, 59, 0, 0, time.UTC), nil)))
	assert.Equal(t, "XLab", cohorts.OfDay(row("1", "Control", day(6), nil)))
	assert.Equal(t, MissingLabel, cohorts.OfDay(row("1", "Control", time.Time{}, nil)))
}

func TestParticipantCountsCutoffDay(t *testing.T) {
	rows := []survey.Row{
		row("1", "Control", time.Date(2021, 4, 5, 10, 0, 0, 0, time.UTC), nil),
	}

	assert.Equal(t, []ParticipantCount{
		{Treatment: "Control", Cohort: "Amazon", Participants: 1},
	}, ParticipantCounts(rows, cohorts))
}

func TestParticipantCounts(t *testing.T) {
	rows := []survey.Row{
		row("1", "Control", day(1), nil),
		row("1", "Control", day(1), nil), // second prompt, same visit
		row("2", "Control", day(6), nil),
		row("3", "Phonological", day(2), nil),
		row("4", "Phonological", day(7), nil),
		row("5", "Phonological", day(8), nil),
	}

	assert.Equal(t, []ParticipantCount{
		{Treatment: "Control", Cohort: "Amazon", Participants: 1},
		{Treatment: "Control", Cohort: "XLab", Participants: 1},
		{Treatment: "Phonological", Cohort: "Amazon", Participants: 1},
		{Treatment: "Phonological", Cohort: "XLab", Participants: 2},
	}, ParticipantCounts(rows, cohorts))
}

func TestMissingSummary(t *testing.T) {
	rows := []survey.Row{
		row("1", "C", day(1), map[string]string{"Gender": "F", "Year": "1990"}),
		row("2", "C", day(1), map[string]string{"Gender": "M", "Year": ""}),
		row("3", "C", day(1), map[string]string{"Gender": "F"}),
	}

	got := MissingSummary(rows, []string{"Gender", "Year", "Race"})
	require.Len(t, got, 3)

	assert.Equal(t, MissingStat{Column: "Gender", Missing: 0, NonNull: 3, Density: 0.5}, got[0])
	assert.Equal(t, "Year", got[1].Column)
	assert.Equal(t, 2, got[1].Missing)
	assert.Equal(t, 66.67, got[1].PctMissing)
	assert.Equal(t, 1.0, got[1].Density)
	assert.Equal(t, 100.0, got[2].PctMissing)
	assert.Zero(t, got[2].Density)
}

func TestDistributionCountsParticipantsOnce(t *testing.T) {
	rows := []survey.Row{
		row("1", "C", day(1), map[string]string{"Gender": "F"}),
		row("1", "C", day(1), map[string]string{"Gender": "F"}),
		row("2", "C", day(1), map[string]string{"Gender": "M"}),
		row("3", "C", day(1), map[string]string{}),
	}

	assert.Equal(t, []ValueCount{
		{Value: "<MISSING>", Count: 1},
		{Value: "F", Count: 1},
		{Value: "M", Count: 1},
	}, Distribution(rows, "Gender"))
}

func TestBirthYears(t *testing.T) {
	var rows []survey.Row
	for i, y := range []string{"1990", "1985", "19996", "Mumbai, India", "25", "1990", "2020"} {
		rows = append(rows, row(string(rune('a'+i)), "C", day(1), map[string]string{"Year": y}))
	}

	assert.Equal(t, []ValueCount{
		{Value: "1985", Count: 1},
		{Value: "1990", Count: 2},
	}, BirthYears(rows, "Year", 1920, 2010))
}

func TestPareto(t *testing.T) {
	bars := Pareto([]ValueCount{
		{Value: "No", Count: 10},
		{Value: "<MISSING>", Count: 5},
		{Value: "Yes", Count: 5},
	})
	require.Len(t, bars, 3)

	assert.Equal(t, "No", bars[0].Value)
	assert.Equal(t, "Yes", bars[1].Value, "ties ordered by value descending")
	assert.Equal(t, "<MISSING>", bars[2].Value)
	assert.InDelta(t, 0.5, bars[0].Cumulative, 1e-12)
	assert.InDelta(t, 0.75, bars[1].Cumulative, 1e-12)
	assert.Equal(t, 1.0, bars[2].Cumulative)

	assert.Nil(t, Pareto(nil))
}
