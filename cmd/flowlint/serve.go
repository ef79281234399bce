package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/uicode"
	"github.com/rendis/flowlint/pkg/mcp"
)

func newServeCommand(a *app) *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flowlint MCP tools over stdio",
		Long:  "Serve flowlint.validate, flowlint.graph, flowlint.endpoint, flowlint.uicode and flowlint.history over MCP stdio. Scheduled checks run in the background unless --scheduler=false.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sched, s, err := a.scheduler(cmd)
			if err != nil {
				return err
			}
			r := a.runner(cmd, false, true)

			if withScheduler {
				if err := sched.RecoverMissed(ctx); err != nil {
					a.logger.Warn("missed check recovery failed", slog.String("error", err.Error()))
				}
				if err := sched.Start(ctx); err != nil {
					return err
				}
				defer func() { _ = sched.Stop() }()
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Runner:    r,
				Validator: a.validator(false),
				Registry:  a.registry(),
				Generator: uicode.NewGenerator(),
				Store:     s,
				FailWhen:  a.cfg.Report.FailWhen,
				Version:   version,
				Logger:    a.logger,
			})
			a.logger.Info("mcp server listening on stdio", slog.Bool("scheduler", withScheduler))
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run scheduled checks in the background")
	return cmd
}
