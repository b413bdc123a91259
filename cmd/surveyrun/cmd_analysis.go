package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sawpanic/surveyrun/internal/demographics"
	"github.com/sawpanic/surveyrun/internal/likert"
	"github.com/sawpanic/surveyrun/internal/render"
	"github.com/sawpanic/surveyrun/internal/stats"
	"github.com/sawpanic/surveyrun/internal/survey"
)

func (a *app) varianceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variance",
		Short: "Histogram of straight-lined (zero variance) answer rows per cohort",
		Long: `For each participant, count the prompt rows whose Likert answers all
agree, then count participants per cohort and number of such rows.
With --rows, emit the variance of every row instead.`,
		RunE: a.runVariance,
	}
	cmd.Flags().String("input", "", "Survey export CSV (required)")
	cmd.Flags().StringSlice("cols", nil, "Likert columns (default survey.variance_columns)")
	cmd.Flags().Bool("rows", false, "Emit per-row variance instead of the histogram")
	addOutputFlags(cmd)
	cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runVariance(cmd *cobra.Command, args []string) error {
	ds, err := a.load(cmd)
	if err != nil {
		return err
	}
	cohorts, err := a.cfg.Cohorts()
	if err != nil {
		return err
	}

	cols, _ := cmd.Flags().GetStringSlice("cols")
	if len(cols) == 0 {
		cols = a.cfg.Survey.VarianceColumns
	}

	format, out := outputFlags(cmd)
	if rows, _ := cmd.Flags().GetBool("rows"); rows {
		scores := likert.RowVariances(ds.Rows, cols, cohorts.Of)
		return emit(cmd, format, out, scores, render.RowScoreTable(scores))
	}

	counts := likert.UniformResponses(ds.Rows, cols, cohorts.Of)
	return emit(cmd, format, out, counts, render.UniformTable(counts))
}

func (a *app) describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Descriptive statistics of numeric columns",
		RunE:  a.runDescribe,
	}
	cmd.Flags().String("input", "", "Survey export CSV (required)")
	cmd.Flags().StringSlice("cols", nil, "Columns to describe (default every numeric column)")
	addOutputFlags(cmd)
	cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runDescribe(cmd *cobra.Command, args []string) error {
	ds, err := a.load(cmd)
	if err != nil {
		return err
	}
	cols, _ := cmd.Flags().GetStringSlice("cols")

	summaries := stats.Describe(ds, cols)
	format, out := outputFlags(cmd)
	return emit(cmd, format, out, summaries, render.SummaryTable(summaries))
}

func (a *app) histogramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "histogram",
		Short: "Equal-width histogram of a numeric column per cohort",
		Long: `Bin a numeric column (words per minute by default) into equal-width
bins shared by every cohort and count the rows of each cohort per bin.`,
		RunE: a.runHistogram,
	}
	cmd.Flags().String("input", "", "Survey export CSV (required)")
	cmd.Flags().String("column", "wpm", "Numeric column to bin")
	cmd.Flags().Int("bins", 100, "Number of bins")
	addOutputFlags(cmd)
	cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runHistogram(cmd *cobra.Command, args []string) error {
	ds, err := a.load(cmd)
	if err != nil {
		return err
	}
	cohorts, err := a.cfg.Cohorts()
	if err != nil {
		return err
	}
	column, _ := cmd.Flags().GetString("column")
	bins, _ := cmd.Flags().GetInt("bins")
	if bins < 1 {
		return fmt.Errorf("--bins must be positive, got %d", bins)
	}

	hist := stats.Histogram(ds, column, bins, cohorts.Of)
	format, out := outputFlags(cmd)
	return emit(cmd, format, out, hist, render.HistogramTable(column, hist))
}

func (a *app) participantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Distinct participants per treatment and cohort",
		RunE:  a.runParticipants,
	}
	cmd.Flags().String("input", "", "Survey export CSV (required)")
	addOutputFlags(cmd)
	cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runParticipants(cmd *cobra.Command, args []string) error {
	ds, err := a.load(cmd)
	if err != nil {
		return err
	}
	cohorts, err := a.cfg.Cohorts()
	if err != nil {
		return err
	}

	counts := demographics.ParticipantCounts(ds.Rows, cohorts)
	format, out := outputFlags(cmd)
	return emit(cmd, format, out, counts, render.ParticipantTable(counts))
}

func (a *app) demographicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demographics",
		Short: "Missing-value summary, or one column's distribution",
		Long: `Without --column, summarise how complete each demographics column is.
With --column, count participants per answer; --pareto adds running
shares and --birth-years keeps only plausible years.`,
		RunE: a.runDemographics,
	}
	cmd.Flags().String("input", "", "Survey export CSV (required)")
	cmd.Flags().String("column", "", "Column to tabulate")
	cmd.Flags().Bool("pareto", false, "Order by count and add cumulative shares")
	cmd.Flags().Bool("birth-years", false, "Treat the column as birth years within demographics.birth_year_min..max")
	addOutputFlags(cmd)
	cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runDemographics(cmd *cobra.Command, args []string) error {
	ds, err := a.load(cmd)
	if err != nil {
		return err
	}
	format, out := outputFlags(cmd)

	column, _ := cmd.Flags().GetString("column")
	if column == "" {
		missing := demographics.MissingSummary(ds.Rows, a.cfg.Demographics.Columns)
		return emit(cmd, format, out, missing, render.MissingTable(missing))
	}

	var counts []demographics.ValueCount
	if birthYears, _ := cmd.Flags().GetBool("birth-years"); birthYears {
		counts = demographics.BirthYears(ds.Rows, column, a.cfg.Demographics.BirthYearMin, a.cfg.Demographics.BirthYearMax)
	} else {
		counts = demographics.Distribution(ds.Rows, column)
	}

	if pareto, _ := cmd.Flags().GetBool("pareto"); pareto {
		bars := demographics.Pareto(counts)
		return emit(cmd, format, out, bars, render.ParetoTable(column, bars))
	}
	return emit(cmd, format, out, counts, render.ValueCountTable(column, counts))
}

// load reads --input with the configured question set
func (a *app) load(cmd *cobra.Command) (*survey.Dataset, error) {
	input, _ := cmd.Flags().GetString("input")
	return survey.NewLoader(a.cfg.QuestionSet()).LoadFile(cmd.Context(), strings.TrimSpace(input))
}
