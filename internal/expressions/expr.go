package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/flowlint/pkg/schema"
)

// ExprEngine evaluates expr-lang expressions such as report gates
// ("errors > 0 || warnings > 5"). Compiled programs are cached and reused
// across goroutines.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEngine creates a new Expr expression engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{
		cache: make(map[string]*vm.Program),
	}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate compiles (or retrieves from cache) an expression and runs it with
// data as the environment. Every key of data is a top-level variable.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}

	prg, err := e.getOrCompile(expression, data, false)
	if err != nil {
		return nil, err
	}
	return e.run(expression, prg, data)
}

// EvaluateBool is Evaluate for predicates: the expression must produce a
// boolean, checked at compile time where the environment allows it.
func (e *ExprEngine) EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error) {
	if expression == "" {
		return false, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}

	prg, err := e.getOrCompile(expression, data, true)
	if err != nil {
		return false, err
	}
	out, err := e.run(expression, prg, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"expr %q returned %T, want bool", expression, out).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}

func (e *ExprEngine) run(expression string, prg *vm.Program, data map[string]any) (any, error) {
	env := data
	if env == nil {
		env = map[string]any{}
	}
	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExpression,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out, nil
}

func (e *ExprEngine) getOrCompile(expression string, data map[string]any, asBool bool) (*vm.Program, error) {
	key := expression
	if asBool {
		key = "bool:" + expression
	}

	e.mu.RLock()
	if prg, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[key]; ok {
		return prg, nil
	}

	env := data
	if env == nil {
		env = map[string]any{}
	}
	opts := []expr.Option{expr.Env(env), expr.AllowUndefinedVariables()}
	if asBool {
		opts = append(opts, expr.AsBool())
	}

	prg, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"expr compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[key] = prg
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)
