package expressions

import "context"

// Engine evaluates expressions against a JSON-shaped input.
// GoJQ queries connector registries; Expr evaluates report gates.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
