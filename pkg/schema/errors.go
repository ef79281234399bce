package schema

import "fmt"

// Error codes for infrastructure failures. Invalid flow documents never surface
// as errors; they surface as diagnostics on a ValidationResult.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeParse      = "PARSE_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeAmbiguous  = "AMBIGUOUS"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeSchema     = "SCHEMA_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeExpression = "EXPRESSION_ERROR"
)

// FlowError is the structured error type for all flowlint operations.
type FlowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	StepID  string         `json:"step_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step ID to the error.
func (e *FlowError) WithStep(stepID string) *FlowError {
	e.StepID = stepID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}
