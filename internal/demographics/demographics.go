package demographics

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/sawpanic/surveyrun/internal/survey"
)

// MissingLabel stands in for blank demographic answers.
const MissingLabel = "<MISSING>"

const dayLayout = "2006-01-02"

// DefaultColumns are the demographic questions of the export.
var DefaultColumns = []string{"Year", "Gender", "English", "Race", "Country", "State", "Student", "Degree"}

// Cohorts splits participants by recruitment wave using their start date.
type Cohorts struct {
	Cutoff time.Time
	Before string
	After  string
}

// Of labels row: before the cutoff day is Before, on or after is After.
// Rows without a start date are MissingLabel.
func (c Cohorts) Of(row survey.Row) string {
	if row.Started.IsZero() {
		return MissingLabel
	}
	if row.Started.Before(c.Cutoff) {
		return c.Before
	}
	return c.After
}

// OfDay labels row by calendar day: only days after the cutoff day are
// After, so the cutoff day itself stays Before. Participant counts use
// this rule; Of is the one the variance histogram uses.
func (c Cohorts) OfDay(row survey.Row) string {
	if row.Started.IsZero() {
		return MissingLabel
	}
	if row.Started.Format(dayLayout) > c.Cutoff.Format(dayLayout) {
		return c.After
	}
	return c.Before
}

// ParticipantCount is the number of distinct participants per arm and cohort.
type ParticipantCount struct {
	Treatment    string `json:"treatment"`
	Cohort       string `json:"cohort"`
	Participants int    `json:"participants"`
}

// ParticipantCounts counts distinct (start day, treatment, participant)
// tuples and sums them per treatment and cohort, assigning cohorts with
// OfDay.
func ParticipantCounts(rows []survey.Row, cohorts Cohorts) []ParticipantCount {
	type visit struct {
		day         string
		treatment   string
		participant string
	}
	type bucket struct {
		treatment string
		cohort    string
	}
	seen := make(map[visit]struct{})
	counts := make(map[bucket]int)
	for _, row := range rows {
		v := visit{row.Started.Format(dayLayout), row.Treatment, row.Participant}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		counts[bucket{row.Treatment, cohorts.OfDay(row)}]++
	}

	out := make([]ParticipantCount, 0, len(counts))
	for b, n := range counts {
		out = append(out, ParticipantCount{Treatment: b.treatment, Cohort: b.cohort, Participants: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Treatment != out[j].Treatment {
			return out[i].Treatment < out[j].Treatment
		}
		return out[i].Cohort < out[j].Cohort
	})
	return out
}

// MissingStat describes how complete one column is.
type MissingStat struct {
	Column     string  `json:"column"`
	PctMissing float64 `json:"pct_missing"`
	Missing    int     `json:"missing"`
	NonNull    int     `json:"non_null"`
	Density    float64 `json:"density"`
}

// MissingSummary reports, per column, the missing share (two decimals),
// missing and present counts, and density: 1 over the number of distinct
// present values, 0 when nothing is present.
func MissingSummary(rows []survey.Row, cols []string) []MissingStat {
	out := make([]MissingStat, 0, len(cols))
	for _, col := range cols {
		s := MissingStat{Column: col}
		distinct := make(map[string]struct{})
		for _, row := range rows {
			v, ok := row.Value(col)
			if !ok {
				s.Missing++
				continue
			}
			s.NonNull++
			distinct[v] = struct{}{}
		}
		if len(rows) > 0 {
			s.PctMissing = math.Round(float64(s.Missing)/float64(len(rows))*100*100) / 100
		}
		if len(distinct) > 0 {
			s.Density = 1 / float64(len(distinct))
		}
		out = append(out, s)
	}
	return out
}

// ValueCount is how many participants gave Value.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Distribution counts distinct (participant, value) pairs of col, so a
// participant answering once per prompt is counted once. Blank answers
// count under MissingLabel. Sorted by value.
func Distribution(rows []survey.Row, col string) []ValueCount {
	type answer struct {
		participant string
		value       string
	}
	seen := make(map[answer]struct{})
	counts := make(map[string]int)
	for _, row := range rows {
		v, ok := row.Value(col)
		if !ok {
			v = MissingLabel
		}
		a := answer{row.Participant, v}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		counts[v]++
	}

	out := make([]ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// BirthYears is Distribution restricted to integer years in [min, max],
// ordered by year. Free-text and implausible answers are dropped.
func BirthYears(rows []survey.Row, col string, min, max int) []ValueCount {
	var out []ValueCount
	for _, vc := range Distribution(rows, col) {
		year, err := strconv.Atoi(vc.Value)
		if err != nil || year < min || year > max {
			continue
		}
		out = append(out, vc)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].Value)
		b, _ := strconv.Atoi(out[j].Value)
		return a < b
	})
	return out
}

// ParetoBar is one bar of a pareto chart with its running share.
type ParetoBar struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Share      float64 `json:"share"`
	Cumulative float64 `json:"cumulative"`
}

// Pareto orders counts descending (ties by value, descending) and adds
// each bar's share and cumulative share. Floating error can push the
// running share to 1 early; such bars are clamped just below 1 and only
// the last bar reports exactly 1.
func Pareto(counts []ValueCount) []ParetoBar {
	sorted := append([]ValueCount(nil), counts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Value > sorted[j].Value
	})

	total := 0
	for _, vc := range sorted {
		total += vc.Count
	}
	if total == 0 {
		return nil
	}

	out := make([]ParetoBar, len(sorted))
	var cum float64
	for i, vc := range sorted {
		share := float64(vc.Count) / float64(total)
		cum += share
		bar := ParetoBar{Value: vc.Value, Count: vc.Count, Share: share, Cumulative: cum}
		if bar.Cumulative >= 1 {
			bar.Cumulative = 0.999999999
		}
		out[i] = bar
	}
	out[len(out)-1].Cumulative = 1
	return out
}
