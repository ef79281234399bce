package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowlint/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// A plain filesystem path is turned into a file URI.
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	if !strings.Contains(dbPath, ":") {
		dbPath = "file:" + dbPath
	}
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, storeError("open libsql", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	if err := runMigrations(ctx, s.db); err != nil {
		return storeError("migrate", err)
	}
	return nil
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Runs ---

const runColumns = "id, file, flow_id, checksum, valid, failed, error_count, warning_count, info_count, result, trigger_source, check_id, duration_ms, created_at"

// SaveRun inserts run, assigning an ID and timestamp when unset.
func (s *LibSQLStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = timeOrNow(run.CreatedAt)
	if run.Trigger == "" {
		run.Trigger = TriggerCLI
	}
	result := run.Result
	if len(result) == 0 {
		result = json.RawMessage(`{"errors":[],"warnings":[],"info":[]}`)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.File, nullStr(run.FlowID), run.Checksum, run.Valid, run.Failed,
		run.ErrorCount, run.WarningCount, run.InfoCount, string(result),
		run.Trigger, nullStr(run.CheckID), run.DurationMs, run.CreatedAt,
	)
	if err != nil {
		return storeError("save run", err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("run", id)
	}
	if err != nil {
		return nil, storeError("get run", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var where []string
	var args []any

	if filter.File != "" {
		where = append(where, "file = ?")
		args = append(args, filter.File)
	}
	if filter.FlowID != "" {
		where = append(where, "flow_id = ?")
		args = append(args, filter.FlowID)
	}
	if filter.CheckID != "" {
		where = append(where, "check_id = ?")
		args = append(args, filter.CheckID)
	}
	if filter.Failed != nil {
		where = append(where, "failed = ?")
		args = append(args, *filter.Failed)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, storeError("scan run", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PruneRuns deletes runs created before the cutoff and returns how many
// were removed.
func (s *LibSQLStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, before)
	if err != nil {
		return 0, storeError("prune runs", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var flowID, checkID sql.NullString
	var result string
	if err := sc.Scan(&run.ID, &run.File, &flowID, &run.Checksum, &run.Valid, &run.Failed,
		&run.ErrorCount, &run.WarningCount, &run.InfoCount, &result,
		&run.Trigger, &checkID, &run.DurationMs, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.FlowID = flowID.String
	run.CheckID = checkID.String
	run.Result = json.RawMessage(result)
	return run, nil
}

// --- Scheduled checks ---

const checkColumns = "id, file, cron_expression, fail_when, enabled, last_run_at, next_run_at, last_run_status, last_run_id, created_at"

func (s *LibSQLStore) CreateScheduledCheck(ctx context.Context, check *ScheduledCheck) error {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	check.CreatedAt = timeOrNow(check.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_checks (`+checkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		check.ID, check.File, check.CronExpression, nullStr(check.FailWhen), check.Enabled,
		nullTime(check.LastRunAt), nullTime(check.NextRunAt), nullStr(check.LastRunStatus),
		nullStr(check.LastRunID), check.CreatedAt,
	)
	if err != nil {
		return storeError("create scheduled check", err)
	}
	return nil
}

func (s *LibSQLStore) GetScheduledCheck(ctx context.Context, id string) (*ScheduledCheck, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+checkColumns+` FROM scheduled_checks WHERE id = ?`, id)
	check, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("scheduled check", id)
	}
	if err != nil {
		return nil, storeError("get scheduled check", err)
	}
	return check, nil
}

func (s *LibSQLStore) UpdateScheduledCheck(ctx context.Context, id string, update ScheduledCheckUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, *update.Enabled)
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if update.LastRunID != "" {
		sets = append(sets, "last_run_id = ?")
		args = append(args, update.LastRunID)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_checks SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storeError("update scheduled check", err)
	}
	return checkRowsAffected(res, "scheduled check", id)
}

func (s *LibSQLStore) ListScheduledChecks(ctx context.Context, filter ScheduledCheckFilter) ([]*ScheduledCheck, error) {
	var where []string
	var args []any

	if filter.Enabled != nil {
		where = append(where, "enabled = ?")
		args = append(args, *filter.Enabled)
	}
	if filter.File != "" {
		where = append(where, "file = ?")
		args = append(args, filter.File)
	}

	query := "SELECT " + checkColumns + " FROM scheduled_checks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list scheduled checks", err)
	}
	defer rows.Close()

	var checks []*ScheduledCheck
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, storeError("scan scheduled check", err)
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledCheck(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_checks WHERE id = ?`, id)
	if err != nil {
		return storeError("delete scheduled check", err)
	}
	return checkRowsAffected(res, "scheduled check", id)
}

func scanCheck(sc scanner) (*ScheduledCheck, error) {
	c := &ScheduledCheck{}
	var failWhen, lastStatus, lastRunID sql.NullString
	var lastRun, nextRun sql.NullTime
	if err := sc.Scan(&c.ID, &c.File, &c.CronExpression, &failWhen, &c.Enabled,
		&lastRun, &nextRun, &lastStatus, &lastRunID, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.FailWhen = failWhen.String
	c.LastRunStatus = lastStatus.String
	c.LastRunID = lastRunID.String
	if lastRun.Valid {
		c.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		c.NextRunAt = &nextRun.Time
	}
	return c, nil
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func storeError(op string, err error) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeStore, "store: %s: %v", op, err).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*LibSQLStore)(nil)
