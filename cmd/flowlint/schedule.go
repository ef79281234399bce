package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/scheduler"
	"github.com/rendis/flowlint/internal/store"
)

func (a *app) scheduler(cmd *cobra.Command) (*scheduler.Scheduler, *store.LibSQLStore, error) {
	s, err := a.openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	return scheduler.NewScheduler(s, a.runner(cmd, false, true), a.logger), s, nil
}

func newScheduleCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled re-validation of flow files",
		Long:  "Scheduled checks re-validate a flow file on a cron schedule while `flowlint serve` runs. Each run is recorded in the history.",
	}
	cmd.AddCommand(newScheduleAddCommand(a))
	cmd.AddCommand(newScheduleListCommand(a))
	cmd.AddCommand(newScheduleToggleCommand(a, "enable", "Enable a scheduled check", true))
	cmd.AddCommand(newScheduleToggleCommand(a, "disable", "Disable a scheduled check", false))
	cmd.AddCommand(newScheduleRunCommand(a))
	cmd.AddCommand(newScheduleRemoveCommand(a))
	return cmd
}

func newScheduleAddCommand(a *app) *cobra.Command {
	var cronExpr, failWhen string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Register a scheduled check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := a.scheduler(cmd)
			if err != nil {
				return err
			}
			if failWhen == "" {
				failWhen = a.cfg.Report.FailWhen
			}
			check, err := sched.Register(cmd.Context(), args[0], cronExpr, failWhen)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s next run %s\n", check.ID, formatTime(check.NextRunAt))
			return err
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "@hourly", "cron expression (5 fields or @descriptor)")
	cmd.Flags().StringVar(&failWhen, "fail-when", "", "gate expression (default from config)")
	return cmd
}

func newScheduleListCommand(a *app) *cobra.Command {
	var jsonOut bool
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			checks, err := s.ListScheduledChecks(cmd.Context(), store.ScheduledCheckFilter{File: file})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, checks)
			}

			t := newTable("CHECK", "FILE", "CRON", "ENABLED", "LAST RUN", "STATUS", "NEXT RUN")
			for _, c := range checks {
				t.Row(c.ID, c.File, c.CronExpression, fmt.Sprint(c.Enabled),
					formatTime(c.LastRunAt), c.LastRunStatus, formatTime(c.NextRunAt))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print checks as JSON")
	cmd.Flags().StringVar(&file, "file", "", "only checks of this file")
	return cmd
}

func newScheduleToggleCommand(a *app, use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <check-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := a.scheduler(cmd)
			if err != nil {
				return err
			}
			return sched.SetEnabled(cmd.Context(), args[0], enabled)
		},
	}
}

func newScheduleRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <check-id>",
		Short: "Run a scheduled check now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, _, err := a.scheduler(cmd)
			if err != nil {
				return err
			}
			check, err := sched.RunNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s run %s\n", check.ID, check.LastRunStatus, check.LastRunID); err != nil {
				return err
			}
			if check.LastRunStatus != scheduler.StatusPassed {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
}

func newScheduleRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <check-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a scheduled check",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			return s.DeleteScheduledCheck(cmd.Context(), args[0])
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
