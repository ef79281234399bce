package report

import (
	"context"

	"github.com/rendis/flowlint/internal/expressions"
	"github.com/rendis/flowlint/pkg/schema"
)

// DefaultGate fails exactly when an error was recorded.
const DefaultGate = "errors > 0"

// Gate decides the exit status of a run. The expression sees errors,
// warnings and info as counts and codes as the codes of every error and
// warning. Errors always fail regardless of the expression.
type Gate struct {
	expression string
	engine     *expressions.ExprEngine
}

// NewGate compiles expression, falling back to DefaultGate when empty.
func NewGate(expression string) (*Gate, error) {
	if expression == "" {
		expression = DefaultGate
	}
	g := &Gate{expression: expression, engine: expressions.NewExprEngine()}
	// Compile against a zero environment so typos surface at startup.
	if _, err := g.engine.EvaluateBool(context.Background(), expression, gateEnv(schema.NewValidationResult())); err != nil {
		return nil, err
	}
	return g, nil
}

// Expression returns the gate source.
func (g *Gate) Expression() string {
	return g.expression
}

// Fails reports whether result should produce a non-zero exit status.
func (g *Gate) Fails(result *schema.ValidationResult) (bool, error) {
	if result.HasErrors() {
		return true, nil
	}
	return g.engine.EvaluateBool(context.Background(), g.expression, gateEnv(result))
}

func gateEnv(result *schema.ValidationResult) map[string]any {
	codes := make([]string, 0, len(result.Errors)+len(result.Warnings))
	for _, d := range result.Errors {
		codes = append(codes, d.Code)
	}
	for _, d := range result.Warnings {
		codes = append(codes, d.Code)
	}
	return map[string]any{
		"errors":   len(result.Errors),
		"warnings": len(result.Warnings),
		"info":     len(result.Info),
		"codes":    codes,
	}
}
