package validation

import (
	"testing"

	"github.com/rendis/flowlint/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Draft(t *testing.T) {
	flow := validFlow(t)
	flow["status"] = "DRAFT"

	result := validate(t, flow)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Invalid status value 'DRAFT'. This will cause deserialization failure!", result.Errors[0].Message)
	assert.Equal(t, "NEVER use 'DRAFT' - it's not a valid enum value", result.Errors[1].Message)
	require.Len(t, result.Info, 1)
	assert.Equal(t, "Valid status values are: CONNECT, DEPLOYED, PUBLISH", result.Info[0].Message)
}

func TestStatus_Values(t *testing.T) {
	tests := []struct {
		name     string
		status   any
		errors   int
		contains string
	}{
		{"deployed", "DEPLOYED", 0, ""},
		{"connect", "CONNECT", 0, ""},
		{"publish", "PUBLISH", 0, ""},
		{"inactive", "INACTIVE", 2, "NEVER use 'INACTIVE'"},
		{"pending", "PENDING", 2, "Invalid status value 'PENDING'"},
		{"lowercase", "deployed", 1, "Unknown status value 'deployed'. Use one of: CONNECT, DEPLOYED, PUBLISH"},
		{"number", 3, 1, "Unknown status value '3'"},
		{"null", nil, 1, "Status is null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := validFlow(t)
			flow["status"] = tt.status

			result := validate(t, flow)

			require.Len(t, result.Errors, tt.errors)
			if tt.contains != "" {
				assert.True(t, containsMessage(result.Errors, tt.contains), messages(result.Errors))
				assert.Equal(t, schema.CodeInvalidEnum, result.Errors[0].Code)
			}
		})
	}
}

func TestStatus_MissingIsWarning(t *testing.T) {
	flow := validFlow(t)
	delete(flow, "status")

	result := validate(t, flow)

	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Missing 'status' field", result.Warnings[0].Message)
}

func setOperation(flow map[string]any, i int, op any) {
	cond := stepByID(flow, "checkOrders")["conditional"].(map[string]any)
	cond["expressions"].([]any)[i].(map[string]any)["operation"] = op
}

func TestOperations_Misnomers(t *testing.T) {
	for op, canonical := range operationMisnomers {
		t.Run(op, func(t *testing.T) {
			flow := validFlow(t)
			setOperation(flow, 1, op)

			result := validate(t, flow)

			require.Len(t, result.Errors, 1)
			assert.Equal(t,
				"Invalid conditional operation '"+op+"' in step 'checkOrders', expression 2. Use '"+canonical+"' instead",
				result.Errors[0].Message)
			assert.Equal(t, "resolver.steps[2].conditional.expressions[1]", result.Errors[0].Location)
			require.Len(t, result.Info, 1)
			assert.Contains(t, result.Info[0].Message, "Valid operations: CONTAINS, DOES_NOT_CONTAIN")
		})
	}
}

func TestOperations_Unknown(t *testing.T) {
	flow := validFlow(t)
	setOperation(flow, 0, "BETWEEN")

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Unknown conditional operation 'BETWEEN' in step 'checkOrders', expression 1", result.Errors[0].Message)
}

func TestOperations_AllValidAccepted(t *testing.T) {
	for _, op := range validOperations {
		flow := validFlow(t)
		setOperation(flow, 0, op)
		assert.True(t, validate(t, flow).Valid(), op)
	}
}

func TestOperations_Nested(t *testing.T) {
	flow := validFlow(t)
	loop := stepByID(flow, "processBatch")["loop"].(map[string]any)
	inner := loop["steps"].([]any)[1].(map[string]any)
	inner["type"] = "CONDITIONAL"
	inner["conditional"] = map[string]any{
		"expressions": []any{map[string]any{"operation": "GTE"}},
	}

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "Use 'GREATER_THAN_OR_EQ' instead")
	assert.Equal(t, "resolver.steps[4].loop.steps[1].conditional.expressions[0]", result.Errors[0].Location)
}
