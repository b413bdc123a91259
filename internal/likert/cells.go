package likert

import (
	"encoding/json"

	"github.com/sawpanic/surveyrun/internal/survey"
)

// Key identifies one diverging-bar segment.
type Key struct {
	Treatment string
	Prompt    string
	Question  string
	Rank      int
}

// Cell is one plot-ready segment of a diverging stacked bar. PctStart and
// PctEnd are signed percentage points relative to the neutral midpoint.
type Cell struct {
	Treatment  string  `json:"treatment" db:"treatment" jsonschema:"description=Experimental arm"`
	Prompt     string  `json:"prompt" db:"prompt" jsonschema:"description=Stimulus the question was asked about"`
	Question   string  `json:"question" db:"question" jsonschema:"description=Likert question label"`
	Rank       int     `json:"rank" db:"rank" jsonschema:"description=Likert rank"`
	Total      int     `json:"total" db:"total" jsonschema:"minimum=0,description=Responses at this rank"`
	GrandTotal int     `json:"grand_total" db:"grand_total" jsonschema:"minimum=0,description=Responses across all ranks of the group; 0 on padding rows"`
	PctOfTotal float64 `json:"pct_of_total" db:"pct_of_total" jsonschema:"minimum=0,maximum=100"`
	PctStart   float64 `json:"pct_start" db:"pct_start"`
	PctEnd     float64 `json:"pct_end" db:"pct_end"`
}

func (c Cell) Key() Key {
	return Key{Treatment: c.Treatment, Prompt: c.Prompt, Question: c.Question, Rank: c.Rank}
}

// Width is the horizontal extent of the segment.
func (c Cell) Width() float64 {
	return c.PctEnd - c.PctStart
}

// CellSet is the immutable result of the diverging transform: exactly one
// cell per (treatment, prompt, question, rank) of the observed axes.
type CellSet struct {
	cells      map[Key]Cell
	treatments []string
	prompts    []string
	questions  []string
	domain     survey.RankDomain
}

// FromCells rebuilds a set from a cell listing, e.g. one read back from a
// cache or database. Axes take the order of first appearance.
func FromCells(cells []Cell, domain survey.RankDomain) *CellSet {
	set := &CellSet{
		cells:  make(map[Key]Cell, len(cells)),
		domain: domain,
	}
	var t, p, q axis
	for _, c := range cells {
		set.cells[c.Key()] = c
		t.add(c.Treatment)
		p.add(c.Prompt)
		q.add(c.Question)
	}
	set.treatments, set.prompts, set.questions = t.values, p.values, q.values
	return set
}

// Get returns the cell for k.
func (s *CellSet) Get(k Key) (Cell, bool) {
	c, ok := s.cells[k]
	return c, ok
}

func (s *CellSet) Len() int { return len(s.cells) }

func (s *CellSet) Domain() survey.RankDomain { return s.domain }

func (s *CellSet) Treatments() []string { return append([]string(nil), s.treatments...) }

func (s *CellSet) Prompts() []string { return append([]string(nil), s.prompts...) }

func (s *CellSet) Questions() []string { return append([]string(nil), s.questions...) }

// Cells lists every cell ordered by treatment, prompt, question, rank.
func (s *CellSet) Cells() []Cell {
	return s.collect(s.questions)
}

// Filter lists the cells of one question, in Cells order.
func (s *CellSet) Filter(question string) []Cell {
	return s.collect([]string{question})
}

// Group returns the cells of one (treatment, prompt, question) bar in rank
// order.
func (s *CellSet) Group(treatment, prompt, question string) []Cell {
	var out []Cell
	for _, r := range s.domain.Ranks() {
		if c, ok := s.cells[Key{treatment, prompt, question, r}]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *CellSet) collect(questions []string) []Cell {
	out := make([]Cell, 0, len(s.cells))
	for _, t := range s.treatments {
		for _, p := range s.prompts {
			for _, q := range questions {
				out = append(out, s.Group(t, p, q)...)
			}
		}
	}
	return out
}

func (s *CellSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Cells())
}

// axis collects distinct values in first-seen order.
type axis struct {
	values []string
	seen   map[string]struct{}
}

func (a *axis) add(v string) {
	if a.seen == nil {
		a.seen = make(map[string]struct{})
	}
	if _, ok := a.seen[v]; ok {
		return
	}
	a.seen[v] = struct{}{}
	a.values = append(a.values, v)
}
