package survey

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Canonical names of the identity columns of an export.
const (
	ColParticipant = "participant"
	ColTreatment   = "treatment"
	ColPrompt      = "prompt"
	ColStartDate   = "startdate"
)

// ParseError reports a cell that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %q: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Row is one wide export row: a participant's answers for one prompt.
type Row struct {
	Line        int
	Participant string
	Treatment   string
	Prompt      string
	Started     time.Time
	values      map[string]string
}

// NewRow builds a row from raw column values; used by tests and the API.
func NewRow(participant, treatment, prompt string, started time.Time, values map[string]string) Row {
	row := Row{
		Participant: participant,
		Treatment:   treatment,
		Prompt:      prompt,
		Started:     started,
		values:      make(map[string]string, len(values)),
	}
	for k, v := range values {
		row.values[NormalizeColumn(k)] = strings.TrimSpace(v)
	}
	return row
}

// Value returns the trimmed cell for column, false when blank or absent.
func (r Row) Value(column string) (string, bool) {
	v, ok := r.values[NormalizeColumn(column)]
	if !ok || v == "" || strings.EqualFold(v, "nan") {
		return "", false
	}
	return v, true
}

// Float returns the cell for column as a number.
func (r Row) Float(column string) (float64, bool) {
	v, ok := r.Value(column)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Dataset is a loaded export: the wide rows plus their long-form responses.
type Dataset struct {
	Source    string
	Columns   []string
	Rows      []Row
	responses []Response
}

// Responses returns the long-form view, one record per answered question.
func (d *Dataset) Responses() []Response {
	out := make([]Response, len(d.responses))
	copy(out, d.responses)
	return out
}

type questionColumn struct {
	index int
	label string
}

// Loader reads wide experiment exports.
type Loader struct {
	questions   QuestionSet
	dateFormats []string
}

// NewLoader creates a loader that emits responses for questions.
func NewLoader(questions QuestionSet) *Loader {
	return &Loader{
		questions: questions,
		dateFormats: []string{
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02",
			"1/2/2006 15:04",
			"1/2/2006",
		},
	}
}

// LoadFile opens path and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer file.Close()

	ds, err := l.Load(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Source = path
	return ds, nil
}

// Load reads a CSV export with a header row.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("export is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	columns := l.mapColumns(header)
	for _, required := range []string{ColParticipant, ColTreatment, ColPrompt} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("export missing required %q column", required)
		}
	}

	// a repeated question column is read once, from its first position
	var questionCols []questionColumn
	mapped := make(map[string]bool)
	for i, name := range header {
		label, ok := l.questions.LabelForColumn(name)
		if !ok {
			continue
		}
		if mapped[label] {
			log.Warn().Str("column", name).Int("index", i).Msg("duplicate question column ignored")
			continue
		}
		mapped[label] = true
		questionCols = append(questionCols, questionColumn{index: i, label: label})
	}
	if len(questionCols) == 0 {
		log.Warn().Strs("questions", l.questions.Labels()).Msg("export has no configured question columns")
	}

	ds := &Dataset{Columns: append([]string(nil), header...)}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		row, err := l.parseRow(record, header, columns, line)
		if err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, row)

		for _, qc := range questionCols {
			raw := strings.TrimSpace(record[qc.index])
			if raw == "" || strings.EqualFold(raw, "nan") {
				continue
			}
			rank, err := parseRank(raw)
			if err != nil {
				return nil, &ParseError{Line: line, Column: header[qc.index], Value: raw, Err: err}
			}
			ds.responses = append(ds.responses, Response{
				Participant: row.Participant,
				Treatment:   row.Treatment,
				Prompt:      row.Prompt,
				Question:    qc.label,
				Rank:        rank,
			})
		}
	}

	log.Debug().
		Int("rows", len(ds.Rows)).
		Int("responses", len(ds.responses)).
		Msg("export loaded")

	return ds, nil
}

func (l *Loader) parseRow(record, header []string, columns map[string]int, line int) (Row, error) {
	values := make(map[string]string, len(record))
	for i, v := range record {
		values[NormalizeColumn(header[i])] = strings.TrimSpace(v)
	}
	row := Row{
		Line:        line,
		Participant: strings.TrimSpace(record[columns[ColParticipant]]),
		Treatment:   strings.TrimSpace(record[columns[ColTreatment]]),
		Prompt:      strings.TrimSpace(record[columns[ColPrompt]]),
		values:      values,
	}
	if idx, ok := columns[ColStartDate]; ok {
		if raw := strings.TrimSpace(record[idx]); raw != "" {
			ts, err := l.parseTimestamp(raw)
			if err != nil {
				return Row{}, &ParseError{Line: line, Column: header[idx], Value: raw, Err: err}
			}
			row.Started = ts
		}
	}
	return row, nil
}

// mapColumns maps canonical identity names to header indices.
func (l *Loader) mapColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for i, name := range header {
		canonical := canonicalColumn(name)
		if _, seen := columns[canonical]; !seen {
			columns[canonical] = i
		}
	}
	return columns
}

func (l *Loader) parseTimestamp(raw string) (time.Time, error) {
	for _, format := range l.dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format")
}

// parseRank accepts "4" as well as "4.0", which spreadsheet exports emit
// for numeric columns that contain blanks.
func parseRank(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("rank is not a number")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("rank is not an integer")
	}
	return int(f), nil
}

// NormalizeColumn folds case and drops spaces, underscores and hyphens.
func NormalizeColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// canonicalColumn converts the identity column variants seen in exports to
// their canonical names.
func canonicalColumn(name string) string {
	switch n := NormalizeColumn(name); n {
	case "rowid", "participant", "participantid", "responseid":
		return ColParticipant
	case "treatment", "branch", "assignment", "arm":
		return ColTreatment
	case "prompt", "stimulus":
		return ColPrompt
	case "startdate", "started", "starttime":
		return ColStartDate
	default:
		return n
	}
}
