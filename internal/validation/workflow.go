package validation

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/flowlint/pkg/schema"
)

// Options configures a FlowValidator.
type Options struct {
	// Parallel runs the independent checkers concurrently.
	Parallel bool
	// Logger receives stage timings at debug level and a summary at info
	// level. Nil discards.
	Logger *slog.Logger
}

// FlowValidator orchestrates the validation pipeline:
// 1. Document structure (root array, first element an object)
// 2. Field, enum, naming, step structure, ValueNode and data-reference checks
// 3. Reachability and reference validity
// Structural failures short-circuit; every other check always runs.
type FlowValidator struct {
	parallel bool
	logger   *slog.Logger
}

var _ Validator = (*FlowValidator)(nil)

// NewFlowValidator creates a FlowValidator. It holds no per-run state and is
// safe for concurrent use.
func NewFlowValidator(opts Options) *FlowValidator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FlowValidator{parallel: opts.Parallel, logger: logger}
}

// Validate parses a raw document and validates its first flow.
func (v *FlowValidator) Validate(data []byte) *schema.ValidationResult {
	doc, err := schema.Decode(data)
	if err != nil {
		result := schema.NewValidationResult()
		msg := err.Error()
		var flowErr *schema.FlowError
		if errors.As(err, &flowErr) {
			msg = flowErr.Message
		}
		result.AddError("", schema.CodeParse, msg)
		v.summarize(result)
		return result
	}
	return v.ValidateDocument(doc)
}

// ValidateDocument validates a parsed document. Only the first element of the
// root array is validated.
func (v *FlowValidator) ValidateDocument(doc *schema.Value) *schema.ValidationResult {
	result := validateStructure(doc)
	if !result.Valid() {
		v.summarize(result)
		return result
	}
	result.Merge(v.ValidateFlow(schema.NewFlow(doc.Items[0])))
	return result
}

// ValidateFlow runs every checker against one flow and merges their findings
// in a fixed order.
func (v *FlowValidator) ValidateFlow(flow *schema.Flow) *schema.ValidationResult {
	results := make([]*schema.ValidationResult, len(checkers))

	if v.parallel {
		var wg sync.WaitGroup
		for i, c := range checkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = v.runChecker(c, flow)
			}()
		}
		wg.Wait()
	} else {
		for i, c := range checkers {
			results[i] = v.runChecker(c, flow)
		}
	}

	result := schema.NewValidationResult()
	for _, r := range results {
		result.Merge(r)
	}
	v.summarize(result)
	return result
}

func (v *FlowValidator) runChecker(c checker, flow *schema.Flow) *schema.ValidationResult {
	start := time.Now()
	result := schema.NewValidationResult()
	c.run(flow, result)
	v.logger.Debug("check finished",
		slog.String("check", c.name),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return result
}

func (v *FlowValidator) summarize(result *schema.ValidationResult) {
	v.logger.Info("flow validated",
		slog.Bool("valid", result.Valid()),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.Int("info", len(result.Info)),
	)
}

// validateStructure checks the document envelope: a non-empty array whose
// first element is an object.
func validateStructure(doc *schema.Value) *schema.ValidationResult {
	result := schema.NewValidationResult()

	switch {
	case doc.IsObject():
		result.AddError("", schema.CodeStructure,
			"Root must be an array, not an object. Wrap your flow in square brackets []")
		return result
	case !doc.IsArray():
		result.AddErrorf("", schema.CodeStructure, "Root must be an array, got %s", doc.Kind)
		return result
	case len(doc.Items) == 0:
		result.AddError("", schema.CodeStructure, "Flow array is empty")
		return result
	}

	if len(doc.Items) > 1 {
		result.AddWarningf("", schema.CodeStructure,
			"Multiple flows detected in array (%d). Only the first flow will be validated.", len(doc.Items))
	}
	if !doc.Items[0].IsObject() {
		result.AddErrorf("[0]", schema.CodeStructure, "Flow must be an object, got %s", doc.Items[0].Kind)
	}
	return result
}
