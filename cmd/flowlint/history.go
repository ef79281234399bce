package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/report"
	"github.com/rendis/flowlint/internal/store"
)

func newHistoryCommand(a *app) *cobra.Command {
	var filter store.RunFilter
	var onlyFailed bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded validation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			if onlyFailed {
				filter.Failed = &onlyFailed
			}
			runs, err := s.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, runs)
			}

			t := newTable("RUN", "CREATED", "FILE", "RESULT", "ERRORS", "WARNINGS", "TRIGGER")
			for _, r := range runs {
				t.Row(r.ID, r.CreatedAt.Local().Format(time.DateTime), r.File, runStatus(r),
					strconv.Itoa(r.ErrorCount), strconv.Itoa(r.WarningCount), r.Trigger)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}

	cmd.Flags().StringVar(&filter.File, "file", "", "only runs of this file")
	cmd.Flags().StringVar(&filter.FlowID, "flow", "", "only runs of this flow id")
	cmd.Flags().StringVar(&filter.CheckID, "check", "", "only runs of this scheduled check")
	cmd.Flags().BoolVar(&onlyFailed, "failed", false, "only failed runs")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print runs as JSON")

	cmd.AddCommand(newHistoryShowCommand(a))
	cmd.AddCommand(newHistoryPruneCommand(a))
	return cmd
}

func newHistoryShowCommand(a *app) *cobra.Command {
	var format string
	var noColor bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			run, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := run.Diagnostics()
			if err != nil {
				return err
			}
			rep := &report.Report{RunID: run.ID, File: run.File, Valid: run.Valid, Failed: run.Failed, Result: result}
			color := a.cfg.Report.Color && !noColor
			return report.Render(cmd.OutOrStdout(), rep, format, color)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "report format: text, json")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func newHistoryPruneCommand(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			s, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			n, err := s.PruneRuns(cmd.Context(), time.Now().UTC().Add(-olderThan))
			if err != nil {
				return err
			}
			if n > 0 {
				if err := s.Vacuum(cmd.Context()); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d runs\n", n)
			return err
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the runs to delete")
	return cmd
}

func runStatus(r *store.Run) string {
	switch {
	case r.Failed:
		return "failed"
	case r.WarningCount > 0:
		return "warnings"
	default:
		return "passed"
	}
}

// newTable returns a plain bordered table for listings.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}
