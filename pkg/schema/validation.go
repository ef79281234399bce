package schema

import (
	"fmt"
	"strings"
)

// ValidationSeverity classifies a diagnostic.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
	SeverityInfo    ValidationSeverity = "info"
)

// Diagnostic codes. They are stable identifiers for machine consumers; the
// message text is for humans.
const (
	CodeParse          = "PARSE"
	CodeStructure      = "STRUCTURE"
	CodeMissingField   = "MISSING_FIELD"
	CodeImportField    = "IMPORT_FIELD"
	CodeNullField      = "NULL_FIELD"
	CodeInvalidEnum    = "INVALID_ENUM"
	CodeNullModel      = "NULL_MODEL"
	CodeModelMismatch  = "MODEL_MISMATCH"
	CodeNaming         = "NAMING"
	CodeEndpointName   = "ENDPOINT_NAME"
	CodeValueNode      = "VALUE_NODE"
	CodeHardcodedIndex = "HARDCODED_INDEX"
	CodeBadReference   = "BAD_REFERENCE"
	CodeUnreachable    = "UNREACHABLE"
	CodeDanglingRef    = "DANGLING_REF"
	CodeDuplicateID    = "DUPLICATE_ID"
	CodeMissingStart   = "MISSING_START"
	CodeGuidance       = "GUIDANCE"
)

// Diagnostic is a single finding with location context. Location is a
// human-readable path used only for reporting.
type Diagnostic struct {
	Location string             `json:"location,omitempty"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// String renders the diagnostic as "ERROR [location]: message".
func (d Diagnostic) String() string {
	label := strings.ToUpper(string(d.Severity))
	if d.Location != "" {
		return fmt.Sprintf("%s [%s]: %s", label, d.Location, d.Message)
	}
	return fmt.Sprintf("%s: %s", label, d.Message)
}

// ValidationResult is the diagnostic sink for one validation run. Findings are
// kept in record order per severity and never deduplicated: the same finding
// reported by two checks appears twice.
type ValidationResult struct {
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Info     []Diagnostic `json:"info"`
}

// NewValidationResult returns an empty sink with non-nil lists.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Errors:   []Diagnostic{},
		Warnings: []Diagnostic{},
		Info:     []Diagnostic{},
	}
}

// Valid returns true if there are no errors (warnings and info are acceptable).
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// HasErrors reports whether any error has been recorded.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// AddError appends an error-severity diagnostic.
func (r *ValidationResult) AddError(location, code, message string) {
	r.Errors = append(r.Errors, Diagnostic{
		Location: location, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddErrorf appends a formatted error-severity diagnostic.
func (r *ValidationResult) AddErrorf(location, code, format string, args ...any) {
	r.AddError(location, code, fmt.Sprintf(format, args...))
}

// AddWarning appends a warning-severity diagnostic.
func (r *ValidationResult) AddWarning(location, code, message string) {
	r.Warnings = append(r.Warnings, Diagnostic{
		Location: location, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// AddWarningf appends a formatted warning-severity diagnostic.
func (r *ValidationResult) AddWarningf(location, code, format string, args ...any) {
	r.AddWarning(location, code, fmt.Sprintf(format, args...))
}

// AddInfo appends an advisory diagnostic. Info never affects the verdict.
func (r *ValidationResult) AddInfo(location, message string) {
	r.Info = append(r.Info, Diagnostic{
		Location: location, Code: CodeGuidance, Message: message, Severity: SeverityInfo,
	})
}

// AddInfof appends a formatted advisory diagnostic.
func (r *ValidationResult) AddInfof(location, format string, args ...any) {
	r.AddInfo(location, fmt.Sprintf(format, args...))
}

// Merge combines another ValidationResult into this one, preserving order.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Info = append(r.Info, other.Info...)
}

// Lines returns the rendered diagnostics of one severity.
func (r *ValidationResult) Lines(sev ValidationSeverity) []string {
	var src []Diagnostic
	switch sev {
	case SeverityError:
		src = r.Errors
	case SeverityWarning:
		src = r.Warnings
	case SeverityInfo:
		src = r.Info
	}
	out := make([]string, len(src))
	for i, d := range src {
		out[i] = d.String()
	}
	return out
}

// ToError converts the result to a FlowError if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
