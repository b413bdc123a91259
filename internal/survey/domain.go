package survey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDomain is returned when a rank range has no single midpoint.
var ErrInvalidDomain = errors.New("rank domain must be a non-empty range of odd length")

// Response is one participant's Likert answer to one question for one prompt.
type Response struct {
	Participant string `json:"participant"`
	Treatment   string `json:"treatment"`
	Prompt      string `json:"prompt"`
	Question    string `json:"question"`
	Rank        int    `json:"rank"`
}

// RankDomain is a contiguous ordinal range, e.g. 1..7. The neutral rank is
// its midpoint, so the range must hold an odd number of ranks.
type RankDomain struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// DefaultRankDomain is the seven-point scale with 4 as neutral.
func DefaultRankDomain() RankDomain {
	return RankDomain{Min: 1, Max: 7}
}

// NewRankDomain builds a validated domain.
func NewRankDomain(min, max int) (RankDomain, error) {
	d := RankDomain{Min: min, Max: max}
	if err := d.Validate(); err != nil {
		return RankDomain{}, err
	}
	return d, nil
}

// Validate checks that the domain is non-empty and has a midpoint.
func (d RankDomain) Validate() error {
	if d.Max < d.Min || (d.Max-d.Min)%2 != 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDomain, d)
	}
	return nil
}

// Neutral returns the midpoint rank.
func (d RankDomain) Neutral() int {
	return d.Min + (d.Max-d.Min)/2
}

// Ranks lists every rank in ascending order.
func (d RankDomain) Ranks() []int {
	if d.Max < d.Min {
		return nil
	}
	ranks := make([]int, 0, d.Max-d.Min+1)
	for r := d.Min; r <= d.Max; r++ {
		ranks = append(ranks, r)
	}
	return ranks
}

func (d RankDomain) Contains(rank int) bool {
	return rank >= d.Min && rank <= d.Max
}

func (d RankDomain) Len() int {
	if d.Max < d.Min {
		return 0
	}
	return d.Max - d.Min + 1
}

func (d RankDomain) String() string {
	return fmt.Sprintf("%d..%d", d.Min, d.Max)
}

// Question maps an export column to the label used in output rows.
type Question struct {
	Column string `yaml:"column" json:"column"`
	Label  string `yaml:"label" json:"label"`
}

// QuestionSet is an ordered, immutable set of Likert questions. Order is
// significant: it drives the question axis of every derived table.
type QuestionSet struct {
	questions []Question
	byLabel   map[string]int
	byColumn  map[string]int
}

// NewQuestionSet builds a set from questions in order. An empty label
// defaults to the lower-cased column name; later duplicates are ignored.
func NewQuestionSet(qs ...Question) QuestionSet {
	set := QuestionSet{
		byLabel:  make(map[string]int, len(qs)),
		byColumn: make(map[string]int, len(qs)),
	}
	for _, q := range qs {
		q.Column = strings.TrimSpace(q.Column)
		q.Label = strings.TrimSpace(q.Label)
		if q.Label == "" {
			q.Label = strings.ToLower(q.Column)
		}
		if q.Label == "" {
			continue
		}
		if _, dup := set.byLabel[q.Label]; dup {
			continue
		}
		idx := len(set.questions)
		set.questions = append(set.questions, q)
		set.byLabel[q.Label] = idx
		if q.Column != "" {
			set.byColumn[NormalizeColumn(q.Column)] = idx
		}
	}
	return set
}

// DefaultQuestions returns the three rated questions of the field experiment.
func DefaultQuestions() QuestionSet {
	return NewQuestionSet(
		Question{Column: "Effective", Label: "effective"},
		Question{Column: "Intelligence", Label: "intelligence"},
		Question{Column: "Writing", Label: "writing"},
	)
}

func (s QuestionSet) Len() int { return len(s.questions) }

// Has reports whether label names a question in the set.
func (s QuestionSet) Has(label string) bool {
	_, ok := s.byLabel[label]
	return ok
}

// Index returns the position of label within the set.
func (s QuestionSet) Index(label string) (int, bool) {
	i, ok := s.byLabel[label]
	return i, ok
}

// LabelForColumn resolves an export column header to its question label.
func (s QuestionSet) LabelForColumn(column string) (string, bool) {
	i, ok := s.byColumn[NormalizeColumn(column)]
	if !ok {
		return "", false
	}
	return s.questions[i].Label, true
}

func (s QuestionSet) Labels() []string {
	labels := make([]string, len(s.questions))
	for i, q := range s.questions {
		labels[i] = q.Label
	}
	return labels
}

func (s QuestionSet) Questions() []Question {
	out := make([]Question, len(s.questions))
	copy(out, s.questions)
	return out
}
