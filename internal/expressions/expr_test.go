package expressions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rendis/flowlint/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counts(errs, warns, info int) map[string]any {
	return map[string]any{"errors": errs, "warnings": warns, "info": info}
}

func TestNewExprEngine(t *testing.T) {
	e := NewExprEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "expr", e.Name())
}

func TestExprEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*ExprEngine)(nil)
}

func TestExpr_Arithmetic(t *testing.T) {
	e := NewExprEngine()
	out, err := e.Evaluate(context.Background(), "errors + warnings", counts(2, 3, 0))
	require.NoError(t, err)
	assert.Equal(t, 5, out)
}

func TestExpr_GateExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		data map[string]any
		want bool
	}{
		{"default passes clean", "errors > 0", counts(0, 4, 1), false},
		{"default fails on error", "errors > 0", counts(1, 0, 0), true},
		{"warning budget", "warnings > 3", counts(0, 4, 0), true},
		{"combined", "errors > 0 || warnings > 5", counts(0, 5, 0), false},
		{"let binding", "let total = errors + warnings; total >= 2", counts(1, 1, 0), true},
		{"ternary", "info > 0 ? warnings > 0 : false", counts(0, 1, 1), true},
	}

	e := NewExprEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.EvaluateBool(context.Background(), tt.expr, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpr_CodesInEnvironment(t *testing.T) {
	e := NewExprEngine()
	data := counts(0, 2, 0)
	data["codes"] = []string{"UNREACHABLE", "NAMING"}

	got, err := e.EvaluateBool(context.Background(), `"UNREACHABLE" in codes`, data)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = e.EvaluateBool(context.Background(), `any(codes, # startsWith "DANGLING")`, data)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestExpr_EvaluateBoolRejectsNonBool(t *testing.T) {
	e := NewExprEngine()
	_, err := e.EvaluateBool(context.Background(), "errors + 1", counts(0, 0, 0))
	require.Error(t, err)

	var flowErr *schema.FlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
}

func TestExpr_EmptyExpression(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = e.EvaluateBool(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestExpr_CompileError(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "errors >", counts(0, 0, 0))
	require.Error(t, err)

	var flowErr *schema.FlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, schema.ErrCodeValidation, flowErr.Code)
	assert.Equal(t, "errors >", flowErr.Details["expression"])
}

func TestExpr_RuntimeError(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "codes[5]", map[string]any{"codes": []string{"NAMING"}})
	require.Error(t, err)

	var flowErr *schema.FlowError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, schema.ErrCodeExpression, flowErr.Code)
}

func TestExpr_UndefinedVariableIsNil(t *testing.T) {
	e := NewExprEngine()
	out, err := e.Evaluate(context.Background(), "missing ?? 7", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestExpr_Caching(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	_, err := e.EvaluateBool(ctx, "errors > 0", counts(1, 0, 0))
	require.NoError(t, err)
	_, err = e.EvaluateBool(ctx, "errors > 0", counts(0, 0, 0))
	require.NoError(t, err)
	_, err = e.Evaluate(ctx, "errors > 0", counts(0, 0, 0))
	require.NoError(t, err)

	e.mu.RLock()
	defer e.mu.RUnlock()
	assert.Len(t, e.cache, 2)
}

func TestExpr_Concurrent(t *testing.T) {
	e := NewExprEngine()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			got, err := e.EvaluateBool(context.Background(), "errors > 0", counts(n%2, 0, 0))
			assert.NoError(t, err)
			assert.Equal(t, n%2 == 1, got)
		}(i)
	}
	wg.Wait()
}
