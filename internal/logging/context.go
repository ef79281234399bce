package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	flowIDKey
	stepIDKey
)

// WithRunID returns a context with the validation run ID set.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithFlowID returns a context with the flow ID set.
func WithFlowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, flowIDKey, id)
}

// WithStepID returns a context with the step ID set.
func WithStepID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stepIDKey, id)
}

// RunID extracts the run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// FlowID extracts the flow ID from the context, or "" if absent.
func FlowID(ctx context.Context) string {
	v, _ := ctx.Value(flowIDKey).(string)
	return v
}

// StepID extracts the step ID from the context, or "" if absent.
func StepID(ctx context.Context) string {
	v, _ := ctx.Value(stepIDKey).(string)
	return v
}

// WithIDs sets all three correlation IDs on the context at once.
func WithIDs(ctx context.Context, runID, flowID, stepID string) context.Context {
	ctx = WithRunID(ctx, runID)
	ctx = WithFlowID(ctx, flowID)
	ctx = WithStepID(ctx, stepID)
	return ctx
}

func correlationAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if v := RunID(ctx); v != "" {
		attrs = append(attrs, slog.String("run_id", v))
	}
	if v := FlowID(ctx); v != "" {
		attrs = append(attrs, slog.String("flow_id", v))
	}
	if v := StepID(ctx); v != "" {
		attrs = append(attrs, slog.String("step_id", v))
	}
	return attrs
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range correlationAttrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting correlation IDs from the
// context into every record logged with a *Context method.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(correlationAttrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
