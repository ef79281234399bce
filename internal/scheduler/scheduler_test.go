package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlint/internal/report"
	"github.com/rendis/flowlint/internal/runner"
	"github.com/rendis/flowlint/internal/store"
	"github.com/rendis/flowlint/pkg/schema"
)

// mockSchedulerStore satisfies store.Store for scheduler tests.
type mockSchedulerStore struct {
	store.Store
	mu     sync.Mutex
	checks map[string]*store.ScheduledCheck
	seq    int
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{checks: make(map[string]*store.ScheduledCheck)}
}

func (m *mockSchedulerStore) CreateScheduledCheck(_ context.Context, check *store.ScheduledCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if check.ID == "" {
		m.seq++
		check.ID = fmt.Sprintf("chk-%d", m.seq)
	}
	cp := *check
	m.checks[check.ID] = &cp
	return nil
}

func (m *mockSchedulerStore) GetScheduledCheck(_ context.Context, id string) (*store.ScheduledCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checks[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "scheduled check %q not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockSchedulerStore) UpdateScheduledCheck(_ context.Context, id string, update store.ScheduledCheckUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checks[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "scheduled check %q not found", id)
	}
	if update.Enabled != nil {
		c.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		c.LastRunAt = update.LastRunAt
	}
	if update.NextRunAt != nil {
		c.NextRunAt = update.NextRunAt
	}
	if update.LastRunStatus != "" {
		c.LastRunStatus = update.LastRunStatus
	}
	if update.LastRunID != "" {
		c.LastRunID = update.LastRunID
	}
	return nil
}

func (m *mockSchedulerStore) ListScheduledChecks(_ context.Context, filter store.ScheduledCheckFilter) ([]*store.ScheduledCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*store.ScheduledCheck
	for _, c := range m.checks {
		if filter.Enabled != nil && c.Enabled != *filter.Enabled {
			continue
		}
		if filter.File != "" && c.File != filter.File {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	return result, nil
}

// mockRunner records RunCheck calls.
type mockRunner struct {
	mu     sync.Mutex
	files  []string
	failed bool
	err    error
}

func (r *mockRunner) RunCheck(_ context.Context, check *store.ScheduledCheck) (*runner.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, check.File)
	if r.err != nil {
		return nil, r.err
	}
	result := schema.NewValidationResult()
	return &runner.Outcome{
		Report: &report.Report{RunID: "run-1", File: check.File, Valid: !r.failed, Failed: r.failed, Result: result},
		Run:    &store.Run{ID: "run-1", File: check.File, CheckID: check.ID},
	}, nil
}

func (r *mockRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func newTestScheduler(s store.Store, r CheckRunner) *Scheduler {
	return NewScheduler(s, r, nil)
}

func addCheck(t *testing.T, ms *mockSchedulerStore, id, file string, enabled bool, next *time.Time) {
	t.Helper()
	require.NoError(t, ms.CreateScheduledCheck(context.Background(), &store.ScheduledCheck{
		ID:             id,
		File:           file,
		CronExpression: "0 * * * *",
		Enabled:        enabled,
		NextRunAt:      next,
	}))
}

func ptr(t time.Time) *time.Time { return &t }

// --- Tests ---

func TestCalculateNextRun(t *testing.T) {
	sched := newTestScheduler(newMockSchedulerStore(), &mockRunner{})
	from := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 * * * *", time.Date(2026, 2, 10, 13, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 2, 10, 12, 15, 0, 0, time.UTC)},
		{"0 0 * * *", time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)},
		{"@daily", time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			next, err := sched.CalculateNextRun(tt.expr, from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}

	_, err := sched.CalculateNextRun("invalid cron", from)
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	ms := newMockSchedulerStore()
	sched := newTestScheduler(ms, &mockRunner{})

	check, err := sched.Register(context.Background(), "flows/a.json", "*/5 * * * *", "warnings > 0")
	require.NoError(t, err)
	assert.True(t, check.Enabled)
	require.NotNil(t, check.NextRunAt)
	assert.True(t, check.NextRunAt.After(time.Now().UTC()))

	got, err := ms.GetScheduledCheck(context.Background(), check.ID)
	require.NoError(t, err)
	assert.Equal(t, "warnings > 0", got.FailWhen)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	sched := newTestScheduler(newMockSchedulerStore(), &mockRunner{})

	_, err := sched.Register(context.Background(), "a.json", "every tuesday", "")
	var flowErr *schema.FlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)

	_, err = sched.Register(context.Background(), "", "@hourly", "")
	require.Error(t, err)

	ms := newMockSchedulerStore()
	sched = newTestScheduler(ms, &mockRunner{})
	_, err = sched.Register(context.Background(), "a.json", "@hourly", "warnings >")
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
	assert.Empty(t, ms.checks, "a check with a bad gate is not stored")
}

func TestTickRunsDueChecks(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{}
	sched := newTestScheduler(ms, r)
	ctx := context.Background()

	addCheck(t, ms, "chk-due", "a.json", true, ptr(time.Now().UTC().Add(-time.Hour)))
	sched.tick(ctx)

	assert.Equal(t, 1, r.callCount())
	got, _ := ms.GetScheduledCheck(ctx, "chk-due")
	assert.NotNil(t, got.LastRunAt)
	require.NotNil(t, got.NextRunAt)
	assert.True(t, got.NextRunAt.After(time.Now().UTC().Add(-time.Second)))
	assert.Equal(t, StatusPassed, got.LastRunStatus)
	assert.Equal(t, "run-1", got.LastRunID)
}

func TestTickSkipsNotDueAndDisabled(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{}
	sched := newTestScheduler(ms, r)

	addCheck(t, ms, "future", "a.json", true, ptr(time.Now().UTC().Add(time.Hour)))
	addCheck(t, ms, "disabled", "b.json", false, ptr(time.Now().UTC().Add(-time.Hour)))
	sched.tick(context.Background())

	assert.Equal(t, 0, r.callCount())
}

func TestTickWithNilNextRunAt(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{}
	sched := newTestScheduler(ms, r)

	addCheck(t, ms, "never-run", "a.json", true, nil)
	sched.tick(context.Background())

	assert.Equal(t, 1, r.callCount())
}

func TestFailedValidationRecorded(t *testing.T) {
	ms := newMockSchedulerStore()
	sched := newTestScheduler(ms, &mockRunner{failed: true})

	addCheck(t, ms, "chk-fail", "a.json", true, nil)
	sched.tick(context.Background())

	got, _ := ms.GetScheduledCheck(context.Background(), "chk-fail")
	assert.Equal(t, StatusFailed, got.LastRunStatus)
}

func TestRunnerErrorRecorded(t *testing.T) {
	ms := newMockSchedulerStore()
	sched := newTestScheduler(ms, &mockRunner{err: assert.AnError})

	addCheck(t, ms, "chk-err", "a.json", true, nil)
	sched.tick(context.Background())

	got, _ := ms.GetScheduledCheck(context.Background(), "chk-err")
	assert.Equal(t, StatusError, got.LastRunStatus)
	assert.Empty(t, got.LastRunID)
	assert.NotNil(t, got.NextRunAt)
}

func TestMissedRecovery(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{}
	sched := newTestScheduler(ms, r)
	ctx := context.Background()

	addCheck(t, ms, "missed", "a.json", true, ptr(time.Now().UTC().Add(-2*time.Hour)))
	addCheck(t, ms, "unscheduled", "b.json", true, nil)

	require.NoError(t, sched.RecoverMissed(ctx))

	assert.Equal(t, 1, r.callCount())
	got, _ := ms.GetScheduledCheck(ctx, "missed")
	assert.Equal(t, StatusPassed, got.LastRunStatus)
	assert.True(t, got.NextRunAt.After(time.Now().UTC()))
}

func TestDedupPreventsDoubleRun(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{}
	sched := newTestScheduler(ms, r)
	ctx := context.Background()

	addCheck(t, ms, "chk-dedup", "a.json", true, ptr(time.Now().UTC().Add(-time.Hour)))

	assert.True(t, sched.tryAcquire("chk-dedup"))
	sched.tick(ctx)
	assert.Equal(t, 0, r.callCount())

	sched.release("chk-dedup")
	sched.tick(ctx)
	assert.Equal(t, 1, r.callCount())
}

func TestStartStop(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{}
	sched := newTestScheduler(ms, r)
	sched.SetInterval(10 * time.Millisecond)
	ctx := context.Background()

	addCheck(t, ms, "chk-loop", "a.json", true, nil)

	require.NoError(t, sched.Start(ctx))
	err := sched.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")

	assert.Eventually(t, func() bool { return r.callCount() >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, sched.Stop())
	require.NoError(t, sched.Stop())
}

func TestRunNow(t *testing.T) {
	ms := newMockSchedulerStore()
	r := &mockRunner{failed: true}
	sched := newTestScheduler(ms, r)
	ctx := context.Background()

	addCheck(t, ms, "chk-now", "a.json", false, ptr(time.Now().UTC().Add(time.Hour)))

	got, err := sched.RunNow(ctx, "chk-now")
	require.NoError(t, err)
	assert.Equal(t, 1, r.callCount(), "runs even when disabled and not due")
	assert.Equal(t, StatusFailed, got.LastRunStatus)

	assert.True(t, sched.tryAcquire("chk-now"))
	_, err = sched.RunNow(ctx, "chk-now")
	assert.Error(t, err)
	sched.release("chk-now")

	_, err = sched.RunNow(ctx, "ghost")
	assert.Error(t, err)
}

func TestSetEnabled(t *testing.T) {
	ms := newMockSchedulerStore()
	sched := newTestScheduler(ms, &mockRunner{})
	ctx := context.Background()

	stale := time.Now().UTC().Add(-48 * time.Hour)
	addCheck(t, ms, "chk-toggle", "a.json", false, &stale)

	require.NoError(t, sched.SetEnabled(ctx, "chk-toggle", true))
	got, _ := ms.GetScheduledCheck(ctx, "chk-toggle")
	assert.True(t, got.Enabled)
	assert.True(t, got.NextRunAt.After(time.Now().UTC()), "rescheduled from now")

	require.NoError(t, sched.SetEnabled(ctx, "chk-toggle", false))
	got, _ = ms.GetScheduledCheck(ctx, "chk-toggle")
	assert.False(t, got.Enabled)

	assert.Error(t, sched.SetEnabled(ctx, "ghost", true))
}
