package expressions

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/flowlint/pkg/schema"
)

// GoJQEngine runs jq queries over decoded JSON documents. Compiled programs
// are cached per (expression, variable names) and shared across goroutines.
type GoJQEngine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewGoJQEngine creates a new GoJQ expression engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{
		cache: make(map[string]*gojq.Code),
	}
}

// Name returns the engine identifier.
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Evaluate runs expression against data. A single output is returned as is,
// several outputs as []any and no output as nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	results, err := e.Query(ctx, expression, data, nil)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Query runs expression against an arbitrary JSON input and collects every
// output. vars binds jq variables: {"$name": "getCustomer"} makes $name
// available inside the query.
func (e *GoJQEngine) Query(ctx context.Context, expression string, input any, vars map[string]any) ([]any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = vars[name]
	}

	code, err := e.getOrCompile(expression, names)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input, values...)
	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExpression,
				"jq evaluation failed for %q: %s", expression, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, val)
	}
	return results, nil
}

func (e *GoJQEngine) getOrCompile(expression string, names []string) (*gojq.Code, error) {
	key := expression
	if len(names) > 0 {
		key = strings.Join(names, ",") + "\x00" + expression
	}

	e.mu.RLock()
	if code, ok := e.cache[key]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := e.cache[key]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	code, err := gojq.Compile(query,
		gojq.WithVariables(names),
		// No $ENV inside registry queries.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[key] = code
	return code, nil
}

var _ Engine = (*GoJQEngine)(nil)
