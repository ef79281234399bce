package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rendis/flowlint/pkg/schema"
)

// Trigger sources recorded on a run.
const (
	TriggerCLI      = "cli"
	TriggerMCP      = "mcp"
	TriggerSchedule = "schedule"
)

// Run is one persisted validation run.
type Run struct {
	ID           string          `json:"id"`
	File         string          `json:"file"`
	FlowID       string          `json:"flow_id,omitempty"`
	Checksum     string          `json:"checksum"`
	Valid        bool            `json:"valid"`
	Failed       bool            `json:"failed"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	InfoCount    int             `json:"info_count"`
	Result       json.RawMessage `json:"result"`
	Trigger      string          `json:"trigger"`
	CheckID      string          `json:"check_id,omitempty"`
	DurationMs   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewRun captures a validation result for persistence. data is the
// validated document; only its checksum is kept.
func NewRun(file, flowID string, data []byte, result *schema.ValidationResult, failed bool) (*Run, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &Run{
		File:         file,
		FlowID:       flowID,
		Checksum:     hex.EncodeToString(sum[:]),
		Valid:        result.Valid(),
		Failed:       failed,
		ErrorCount:   len(result.Errors),
		WarningCount: len(result.Warnings),
		InfoCount:    len(result.Info),
		Result:       raw,
		Trigger:      TriggerCLI,
	}, nil
}

// Diagnostics decodes the stored result.
func (r *Run) Diagnostics() (*schema.ValidationResult, error) {
	result := schema.NewValidationResult()
	if len(r.Result) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(r.Result, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ScheduledCheck re-validates a flow file on a cron schedule.
type ScheduledCheck struct {
	ID             string     `json:"id"`
	File           string     `json:"file"`
	CronExpression string     `json:"cron_expression"`
	FailWhen       string     `json:"fail_when,omitempty"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus  string     `json:"last_run_status,omitempty"`
	LastRunID      string     `json:"last_run_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// --- Filter and update types ---

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	File    string     `json:"file,omitempty"`
	FlowID  string     `json:"flow_id,omitempty"`
	CheckID string     `json:"check_id,omitempty"`
	Failed  *bool      `json:"failed,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
	Limit   int        `json:"limit,omitempty"`
	Offset  int        `json:"offset,omitempty"`
}

// ScheduledCheckUpdate specifies mutable fields of a scheduled check.
type ScheduledCheckUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	LastRunID     string     `json:"last_run_id,omitempty"`
}

// ScheduledCheckFilter specifies criteria for listing scheduled checks.
type ScheduledCheckFilter struct {
	Enabled *bool  `json:"enabled,omitempty"`
	File    string `json:"file,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}
