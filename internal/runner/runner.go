// Package runner ties one validation run together: read the flow file,
// validate it, apply the report gate and record the run.
package runner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/flowlint/internal/logging"
	"github.com/rendis/flowlint/internal/report"
	"github.com/rendis/flowlint/internal/store"
	"github.com/rendis/flowlint/internal/validation"
	"github.com/rendis/flowlint/pkg/schema"
)

// Request describes one validation run.
type Request struct {
	File string
	// Data is the document to validate. When nil it is read from File.
	Data []byte
	// FailWhen is the gate expression; empty means the default gate.
	FailWhen string
	Trigger  string
	CheckID  string
}

// Outcome is the result of a run. Run is nil when no store is configured
// or recording failed; RecordErr holds the recording failure.
type Outcome struct {
	Report    *report.Report
	Run       *store.Run
	RecordErr error
}

// Runner executes validation runs. It is safe for concurrent use.
type Runner struct {
	validator validation.Validator
	store     store.Store
	logger    *slog.Logger
}

// New creates a Runner. s may be nil, in which case runs are not recorded.
func New(v validation.Validator, s store.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{validator: v, store: s, logger: logger}
}

// Run validates one document. Invalid flows are reported in the outcome;
// an error means the run itself could not happen.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	gate, err := report.NewGate(req.FailWhen)
	if err != nil {
		return nil, err
	}

	data := req.Data
	if data == nil {
		if data, err = readFlow(req.File); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	flowID := flowIDOf(data)
	if flowID != "" {
		ctx = logging.WithFlowID(ctx, flowID)
	}
	log := logging.LogWith(ctx, r.logger)

	start := time.Now()
	result := r.validator.Validate(data)
	rep, err := report.New(runID, req.File, result, gate)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	log.Info("validation run finished",
		slog.String("file", req.File),
		slog.Bool("failed", rep.Failed),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("elapsed", elapsed),
	)

	out := &Outcome{Report: rep}
	if r.store == nil {
		return out, nil
	}

	run, err := r.record(ctx, req, runID, flowID, data, result, rep.Failed, elapsed)
	if err != nil {
		log.Warn("run not recorded", slog.String("error", err.Error()))
		out.RecordErr = err
		return out, nil
	}
	log.Debug("run recorded", slog.String("trigger", run.Trigger))
	out.Run = run
	return out, nil
}

// record saves the run history row. History is best effort: a failure here
// never changes the report.
func (r *Runner) record(ctx context.Context, req Request, runID, flowID string, data []byte,
	result *schema.ValidationResult, failed bool, elapsed time.Duration) (*store.Run, error) {
	run, err := store.NewRun(req.File, flowID, data, result, failed)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "encode run result").WithCause(err)
	}
	run.ID = runID
	run.DurationMs = elapsed.Milliseconds()
	if req.Trigger != "" {
		run.Trigger = req.Trigger
	}
	run.CheckID = req.CheckID
	if err := r.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// RunCheck re-validates the file of a scheduled check.
func (r *Runner) RunCheck(ctx context.Context, check *store.ScheduledCheck) (*Outcome, error) {
	return r.Run(ctx, Request{
		File:     check.File,
		FailWhen: check.FailWhen,
		Trigger:  store.TriggerSchedule,
		CheckID:  check.ID,
	})
}

func readFlow(path string) ([]byte, error) {
	if path == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow file path is required")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "flow file %s not found", path).WithCause(err)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "read flow file %s", path).WithCause(err)
	}
	return data, nil
}

// flowIDOf returns the id of the first flow, or "" when the document does
// not parse or has none.
func flowIDOf(data []byte) string {
	doc, err := schema.Decode(data)
	if err != nil || !doc.IsArray() || len(doc.Items) == 0 {
		return ""
	}
	id, ok := doc.Items[0].Get("id")
	if !ok {
		return ""
	}
	return id.Text()
}
