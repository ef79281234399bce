package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/report"
	"github.com/rendis/flowlint/internal/runner"
	"github.com/rendis/flowlint/internal/store"
)

type validateOptions struct {
	format   string
	noColor  bool
	failWhen string
	parallel bool
	noRecord bool
}

func newValidateCommand(a *app) *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate flow documents",
		Long:  "Validate each flow file and print a report. Exits 1 when any flow fails the gate (by default: when it has errors).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := opts.format
			if format == "" {
				format = a.cfg.Report.Format
			}
			failWhen := opts.failWhen
			if failWhen == "" {
				failWhen = a.cfg.Report.FailWhen
			}
			color := a.cfg.Report.Color && !opts.noColor && format == "text"

			r := a.runner(cmd, opts.parallel, !opts.noRecord)

			failed := false
			for _, file := range args {
				out, err := r.Run(cmd.Context(), runner.Request{
					File:     file,
					FailWhen: failWhen,
					Trigger:  store.TriggerCLI,
				})
				if err != nil {
					return err
				}
				if err := report.Render(cmd.OutOrStdout(), out.Report, format, color); err != nil {
					return err
				}
				failed = failed || out.Report.Failed
			}
			if failed {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "report format: text, json (default from config)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVar(&opts.failWhen, "fail-when", "", "gate expression over errors, warnings, info and codes")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "run independent checks concurrently")
	cmd.Flags().BoolVar(&opts.noRecord, "no-record", false, "do not record the run in the history database")
	return cmd
}
