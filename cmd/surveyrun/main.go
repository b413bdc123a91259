package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/surveyrun/internal/config"
	"github.com/sawpanic/surveyrun/internal/render"
)

const (
	appName = "surveyrun"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Turn field-experiment survey exports into chart-ready tables",
		Version: version,
		Long: `surveyrun reads a wide survey export (one row per participant and prompt)
and produces the tables behind the experiment's charts: diverging Likert
bars centred on the neutral answer, response variance, descriptive
statistics and demographics.

Results go to stdout as a table on a terminal and as JSON otherwise.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath, "Config file (YAML); missing file means defaults")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	flags.BoolVar(&a.logJSON, "log-json", false, "Log raw JSON instead of console output")

	rootCmd.AddCommand(
		a.divergeCmd(),
		a.varianceCmd(),
		a.describeCmd(),
		a.histogramCmd(),
		a.participantsCmd(),
		a.demographicsCmd(),
		a.schemaCmd(),
		a.runsCmd(),
		a.serveCmd(),
		a.configCmd(),
	)

	return rootCmd
}

// setup configures logging and loads configuration before any subcommand
func (a *app) setup(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(a.logLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	if a.logJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log.Debug().Str("config", a.configPath).Str("ranks", cfg.Survey.Rank.String()).Msg("Configuration loaded")
	return nil
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// emit writes a result to --out (atomically) or to the command's stdout
func emit(cmd *cobra.Command, format, out string, doc any, t render.Table) error {
	stdout := cmd.OutOrStdout()
	f, err := render.ParseFormat(format, out == "" && isTerminal(stdout))
	if err != nil {
		return err
	}

	if out == "" {
		return render.Write(stdout, f, doc, t)
	}

	var buf bytes.Buffer
	if err := render.Write(&buf, f, doc, t); err != nil {
		return err
	}
	if err := render.WriteFileAtomic(out, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	log.Info().Str("path", out).Str("format", string(f)).Msg("Output written")
	return nil
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "Output format (json|csv|table); default table on a terminal, json otherwise")
	cmd.Flags().String("out", "", "Write output to this file instead of stdout")
}

func outputFlags(cmd *cobra.Command) (format, out string) {
	format, _ = cmd.Flags().GetString("format")
	out, _ = cmd.Flags().GetString("out")
	return format, out
}
