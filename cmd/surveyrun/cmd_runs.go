package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sawpanic/surveyrun/internal/render"
)

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the diverge output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := render.Schema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return err
		},
	}
}

func (a *app) runsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect diverge runs saved in postgres",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  a.runRunsList,
	}
	listCmd.Flags().Int("limit", 20, "Maximum runs to list")
	addOutputFlags(listCmd)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the cells of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runRunsShow,
	}
	addOutputFlags(showCmd)

	runsCmd.AddCommand(listCmd, showCmd)
	return runsCmd
}

func (a *app) runRunsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	manager, err := a.runStore(ctx)
	if err != nil {
		return err
	}
	defer manager.Close()

	runs, err := manager.Runs().List(ctx, limit)
	if err != nil {
		return err
	}

	format, out := outputFlags(cmd)
	return emit(cmd, format, out, runs, render.RunsTable(runs))
}

func (a *app) runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("run id %q is not a uuid: %w", args[0], err)
	}

	manager, err := a.runStore(ctx)
	if err != nil {
		return err
	}
	defer manager.Close()

	run, err := manager.Runs().Get(ctx, id)
	if err != nil {
		return err
	}

	format, out := outputFlags(cmd)
	return emit(cmd, format, out, render.CellsDocument{
		RunID: run.ID.String(),
		Cells: run.Cells,
	}, render.CellsTable(run.Cells))
}
