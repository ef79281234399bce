package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlint/internal/config"
	"github.com/rendis/flowlint/internal/connector"
	"github.com/rendis/flowlint/internal/expressions"
	"github.com/rendis/flowlint/internal/logging"
	"github.com/rendis/flowlint/internal/runner"
	"github.com/rendis/flowlint/internal/store"
	"github.com/rendis/flowlint/internal/validation"
	"github.com/rendis/flowlint/pkg/schema"
)

// globalFlags override configuration for one invocation.
type globalFlags struct {
	configPath    string
	logLevel      string
	logFormat     string
	dbPath        string
	connectorsDir string
}

// app holds the configuration and lazily opened dependencies shared by the
// commands.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	logger *slog.Logger
	store  *store.LibSQLStore
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.Log.Format = a.flags.logFormat
	}
	if a.flags.dbPath != "" {
		cfg.DB.Path = a.flags.dbPath
	}
	if a.flags.connectorsDir != "" {
		cfg.Connectors.Dir = a.flags.connectorsDir
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return schema.NewError(schema.ErrCodeConfig, err.Error()).WithCause(err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStore opens and migrates the run history database on first use.
func (a *app) openStore(cmd *cobra.Command) (*store.LibSQLStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if dir := filepath.Dir(a.cfg.DB.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "create %s", dir).WithCause(err)
		}
	}
	s, err := store.NewLibSQLStore(a.cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(cmd.Context()); err != nil {
		_ = s.Close()
		return nil, err
	}
	a.store = s
	a.logger.Debug("store opened", slog.String("path", a.cfg.DB.Path))
	return s, nil
}

func (a *app) validator(parallel bool) *validation.FlowValidator {
	return validation.NewFlowValidator(validation.Options{
		Parallel: parallel || a.cfg.Validation.Parallel,
		Logger:   a.logger,
	})
}

// runner builds a runner; record=false skips the run history. A history
// database that cannot be opened only costs the recording.
func (a *app) runner(cmd *cobra.Command, parallel, record bool) *runner.Runner {
	var s store.Store
	if record {
		st, err := a.openStore(cmd)
		if err != nil {
			a.logger.Warn("run history unavailable, not recording",
				slog.String("path", a.cfg.DB.Path), slog.String("error", err.Error()))
		} else {
			s = st
		}
	}
	return runner.New(a.validator(parallel), s, a.logger)
}

func (a *app) registry() *connector.Registry {
	return connector.NewRegistry(a.cfg.Connectors.Dir, expressions.NewGoJQEngine(), a.logger)
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
}
