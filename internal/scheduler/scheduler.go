package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/flowlint/internal/report"
	"github.com/rendis/flowlint/internal/runner"
	"github.com/rendis/flowlint/internal/store"
	"github.com/rendis/flowlint/pkg/schema"
)

// Last-run statuses recorded on a scheduled check.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	StatusError  = "error"
)

// DefaultInterval is how often the store is polled for due checks.
const DefaultInterval = 60 * time.Second

// CheckRunner re-validates the file of a scheduled check. Satisfied by
// *runner.Runner.
type CheckRunner interface {
	RunCheck(ctx context.Context, check *store.ScheduledCheck) (*runner.Outcome, error)
}

// Scheduler polls the store for due scheduled checks and runs them.
type Scheduler struct {
	store    store.Store
	runner   CheckRunner
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // check IDs currently running
}

// NewScheduler creates a new Scheduler.
func NewScheduler(s store.Store, r CheckRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		store:    s,
		runner:   r,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		interval: DefaultInterval,
		inflight: make(map[string]struct{}),
	}
}

// SetInterval changes the polling interval. It has no effect once started.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Register validates the cron expression and gate, then stores a new
// enabled check due at the next matching time.
func (s *Scheduler) Register(ctx context.Context, file, cronExpr, failWhen string) (*store.ScheduledCheck, error) {
	if file == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "scheduled check needs a flow file")
	}
	next, err := s.CalculateNextRun(cronExpr, time.Now().UTC())
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, err.Error()).WithCause(err)
	}
	if _, err := report.NewGate(failWhen); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid gate %q: %v", failWhen, err).WithCause(err)
	}
	check := &store.ScheduledCheck{
		File:           file,
		CronExpression: cronExpr,
		FailWhen:       failWhen,
		Enabled:        true,
		NextRunAt:      &next,
	}
	if err := s.store.CreateScheduledCheck(ctx, check); err != nil {
		return nil, err
	}
	s.logger.Info("scheduled check registered",
		slog.String("check_id", check.ID),
		slog.String("file", file),
		slog.String("cron", cronExpr),
	)
	return check, nil
}

// SetEnabled enables or disables a check. Enabling reschedules it from now
// so a long-disabled check does not fire immediately.
func (s *Scheduler) SetEnabled(ctx context.Context, id string, enabled bool) error {
	update := store.ScheduledCheckUpdate{Enabled: &enabled}
	if enabled {
		check, err := s.store.GetScheduledCheck(ctx, id)
		if err != nil {
			return err
		}
		next, err := s.CalculateNextRun(check.CronExpression, time.Now().UTC())
		if err != nil {
			return err
		}
		update.NextRunAt = &next
	}
	return s.store.UpdateScheduledCheck(ctx, id, update)
}

// RunNow runs one check immediately, whether or not it is due or enabled,
// and returns it with the recorded status.
func (s *Scheduler) RunNow(ctx context.Context, id string) (*store.ScheduledCheck, error) {
	check, err := s.store.GetScheduledCheck(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.tryAcquire(id) {
		return nil, fmt.Errorf("scheduled check %q is already running", id)
	}
	defer s.release(id)

	if err := s.runCheck(ctx, check, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.store.GetScheduledCheck(ctx, id)
}

// Start launches the background polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every enabled check that is due.
func (s *Scheduler) tick(ctx context.Context) {
	enabled := true
	checks, err := s.store.ListScheduledChecks(ctx, store.ScheduledCheckFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("failed to list scheduled checks", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, check := range checks {
		if check.NextRunAt != nil && check.NextRunAt.After(now) {
			continue
		}
		if !s.tryAcquire(check.ID) {
			continue
		}
		if err := s.runCheck(ctx, check, now); err != nil {
			s.logger.Error("failed to run scheduled check",
				slog.String("check_id", check.ID),
				slog.String("error", err.Error()),
			)
		}
		s.release(check.ID)
	}
}

// runCheck validates the check's file and advances its schedule. A failed
// validation is a normal outcome; only store failures are returned.
func (s *Scheduler) runCheck(ctx context.Context, check *store.ScheduledCheck, now time.Time) error {
	s.logger.Info("running scheduled check",
		slog.String("check_id", check.ID),
		slog.String("file", check.File),
	)

	status := StatusPassed
	var runID string
	out, err := s.runner.RunCheck(ctx, check)
	switch {
	case err != nil:
		status = StatusError
		s.logger.Error("scheduled check could not run",
			slog.String("check_id", check.ID),
			slog.String("error", err.Error()),
		)
	case out.Report.Failed:
		status = StatusFailed
	}
	if err == nil && out.Run != nil {
		runID = out.Run.ID
	}

	return s.updateStatus(ctx, check, now, status, runID)
}

func (s *Scheduler) updateStatus(ctx context.Context, check *store.ScheduledCheck, now time.Time, status, runID string) error {
	nextRun, err := s.CalculateNextRun(check.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for check %q: %w", check.ID, err)
	}

	return s.store.UpdateScheduledCheck(ctx, check.ID, store.ScheduledCheckUpdate{
		LastRunAt:     &now,
		NextRunAt:     &nextRun,
		LastRunStatus: status,
		LastRunID:     runID,
	})
}

func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

// RecoverMissed runs, once, every enabled check whose next run passed while
// the scheduler was down. Checks never scheduled are left to the first tick.
func (s *Scheduler) RecoverMissed(ctx context.Context) error {
	enabled := true
	checks, err := s.store.ListScheduledChecks(ctx, store.ScheduledCheckFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("list missed checks: %w", err)
	}

	now := time.Now().UTC()
	recovered := 0
	for _, check := range checks {
		if check.NextRunAt == nil || !check.NextRunAt.Before(now) {
			continue
		}
		if !s.tryAcquire(check.ID) {
			continue
		}
		err := s.runCheck(ctx, check, now)
		s.release(check.ID)
		if err != nil {
			s.logger.Error("failed to recover missed check",
				slog.String("check_id", check.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info("recovered missed checks", slog.Int("count", recovered))
	}
	return nil
}
