package likert

import (
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/surveyrun/internal/survey"
)

type options struct {
	domain  survey.RankDomain
	workers int
}

// Option configures ComputeDivergingOffsets.
type Option func(*options)

// WithRankDomain overrides the default 1..7 scale. The neutral rank is the
// domain midpoint.
func WithRankDomain(d survey.RankDomain) Option {
	return func(o *options) { o.domain = d }
}

// WithWorkers folds up to n groups concurrently. Groups are independent so
// the result does not depend on n.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// group is one diverging bar: a (treatment, prompt, question) triple.
type group struct {
	treatment string
	prompt    string
	question  string
}

// ComputeDivergingOffsets turns long-form responses into plot-ready cells
// for a diverging stacked bar centred on the neutral rank.
//
// Counts are taken per (treatment, prompt, question, rank) and normalised
// by their group total. The observed axes are then crossed with the full
// rank domain; combinations with no responses are padded with a zero
// percentage. Finally each group is folded outward from the neutral rank,
// which straddles zero: lower ranks stack leftward in descending order and
// higher ranks stack rightward in ascending order.
func ComputeDivergingOffsets(responses []survey.Response, questions survey.QuestionSet, opts ...Option) (*CellSet, error) {
	o := options{domain: survey.DefaultRankDomain(), workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.domain.Validate(); err != nil {
		return nil, err
	}
	if err := validate(responses, questions, o.domain); err != nil {
		return nil, err
	}

	counts := make(map[Key]int)
	grandTotals := make(map[group]int)
	var treatments, prompts axis
	observedQuestions := make(map[string]struct{})
	for _, r := range responses {
		counts[Key{r.Treatment, r.Prompt, r.Question, r.Rank}]++
		grandTotals[group{r.Treatment, r.Prompt, r.Question}]++
		treatments.add(r.Treatment)
		prompts.add(r.Prompt)
		observedQuestions[r.Question] = struct{}{}
	}

	qs := make([]string, 0, len(observedQuestions))
	for q := range observedQuestions {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool {
		a, _ := questions.Index(qs[i])
		b, _ := questions.Index(qs[j])
		return a < b
	})

	groups := make([]group, 0, len(treatments.values)*len(prompts.values)*len(qs))
	for _, t := range treatments.values {
		for _, p := range prompts.values {
			for _, q := range qs {
				groups = append(groups, group{t, p, q})
			}
		}
	}

	folded := make([][]Cell, len(groups))
	var eg errgroup.Group
	eg.SetLimit(o.workers)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			folded[i] = foldGroup(g, o.domain, counts, grandTotals[g])
			return nil
		})
	}
	// folds never fail; Wait only joins the workers
	eg.Wait()

	set := &CellSet{
		cells:      make(map[Key]Cell, len(groups)*o.domain.Len()),
		treatments: treatments.values,
		prompts:    prompts.values,
		questions:  qs,
		domain:     o.domain,
	}
	for _, cells := range folded {
		for _, c := range cells {
			set.cells[c.Key()] = c
		}
	}

	log.Debug().
		Int("responses", len(responses)).
		Int("groups", len(groups)).
		Int("cells", len(set.cells)).
		Int("workers", o.workers).
		Msg("diverging offsets computed")

	return set, nil
}

// validate reports the first response, in input order, that names an
// unknown question or an out-of-domain rank.
func validate(responses []survey.Response, questions survey.QuestionSet, domain survey.RankDomain) error {
	for _, r := range responses {
		if !questions.Has(r.Question) {
			return &InvalidQuestionError{Response: r}
		}
		if !domain.Contains(r.Rank) {
			return &InvalidRankError{Response: r, Domain: domain}
		}
	}
	return nil
}

// foldGroup materialises every rank of one bar (left-joining observed
// counts onto the rank domain) and lays the segments out around zero.
func foldGroup(g group, domain survey.RankDomain, counts map[Key]int, grandTotal int) []Cell {
	ranks := domain.Ranks()
	cells := make([]Cell, len(ranks))
	for i, r := range ranks {
		c := Cell{Treatment: g.treatment, Prompt: g.prompt, Question: g.question, Rank: r}
		if n, ok := counts[c.Key()]; ok {
			c.Total = n
			c.GrandTotal = grandTotal
			c.PctOfTotal = float64(n) / float64(grandTotal) * 100
		}
		cells[i] = c
	}

	mid := domain.Neutral() - domain.Min
	half := cells[mid].PctOfTotal / 2
	// 0 - half keeps an empty neutral segment at +0 rather than -0.
	cells[mid].PctStart = 0 - half
	cells[mid].PctEnd = half

	for i := mid - 1; i >= 0; i-- {
		cells[i].PctEnd = cells[i+1].PctStart
		cells[i].PctStart = cells[i].PctEnd - cells[i].PctOfTotal
	}
	for i := mid + 1; i < len(cells); i++ {
		cells[i].PctStart = cells[i-1].PctEnd
		cells[i].PctEnd = cells[i].PctStart + cells[i].PctOfTotal
	}
	return cells
}
