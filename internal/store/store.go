package store

import (
	"context"
	"time"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Validation runs
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	// Scheduled checks
	CreateScheduledCheck(ctx context.Context, check *ScheduledCheck) error
	GetScheduledCheck(ctx context.Context, id string) (*ScheduledCheck, error)
	UpdateScheduledCheck(ctx context.Context, id string, update ScheduledCheckUpdate) error
	ListScheduledChecks(ctx context.Context, filter ScheduledCheckFilter) ([]*ScheduledCheck, error)
	DeleteScheduledCheck(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
