package validation

import (
	"testing"

	"github.com/rendis/flowlint/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_MissingTopLevel(t *testing.T) {
	flow := validFlow(t)
	delete(flow, "clientId")
	delete(flow, "metaData")

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Missing required top-level fields: clientId, metaData", result.Errors[0].Message)
	assert.Equal(t, schema.CodeMissingField, result.Errors[0].Code)
}

func TestFields_MissingImportFieldIsWarning(t *testing.T) {
	flow := validFlow(t)
	delete(flow, "errorModelId")

	result := validate(t, flow)

	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Missing 'errorModelId' field - may cause import issues", result.Warnings[0].Message)
	require.Len(t, result.Info, 1)
	assert.Equal(t, `Add "errorModelId": "" to prevent 'null' import errors`, result.Info[0].Message)
}

func TestFields_NullImportFieldIsFine(t *testing.T) {
	flow := validFlow(t)
	flow["version"] = nil

	result := validate(t, flow)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestFields_NullModel(t *testing.T) {
	flow := validFlow(t)
	flow["headerModel"] = nil

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.CodeNullModel, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "'headerModel' is null")
	assert.Contains(t, result.Errors[0].Message, "Cannot invoke DataModelInput.getId() because model is null")
}

func TestFields_MissingModel(t *testing.T) {
	flow := validFlow(t)
	delete(flow, "inputModel")

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.CodeNullModel, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "Missing 'inputModel' object")
}

func TestFields_ModelNotObject(t *testing.T) {
	flow := validFlow(t)
	flow["outputModel"] = "json"

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "'outputModel' must be an object, got string", result.Errors[0].Message)
}

func TestFields_ModelIDMismatch(t *testing.T) {
	flow := validFlow(t)
	flow["inputModelId"] = "other"

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.CodeModelMismatch, result.Errors[0].Code)
	assert.Equal(t, "inputModelId ('other') doesn't match inputModel.id ('in1')", result.Errors[0].Message)
}

func TestFields_ModelMissingFields(t *testing.T) {
	flow := validFlow(t)
	model := flow["outputModel"].(map[string]any)
	delete(model, "uiSchema")
	delete(model, "dataModel")

	result := validate(t, flow)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "outputModel missing required fields: uiSchema, dataModel", result.Errors[0].Message)
}

func TestFields_ModelIDFieldMissing(t *testing.T) {
	flow := validFlow(t)
	delete(flow, "headerModelId")

	result := validate(t, flow)

	// Reported both as a missing top-level field and by the model check.
	assert.Equal(t, []string{
		"Missing required top-level fields: headerModelId",
		"Missing 'headerModelId' field",
	}, messages(result.Errors))
}

func TestFields_StepNullFields(t *testing.T) {
	flow := validFlow(t)
	step := stepByID(flow, "transformOrders")
	delete(step, "settings")
	delete(step, "aiAgent")

	nested := stepByID(flow, "processBatch")["loop"].(map[string]any)["steps"].([]any)[1].(map[string]any)
	delete(nested, "endLoop")

	result := validate(t, flow)

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "Step 'transformOrders' (INLINE) missing required null fields: aiAgent, settings", result.Errors[0].Message)
	assert.Equal(t, "resolver.steps[3]", result.Errors[0].Location)
	assert.Equal(t, "Nested step 'saveItem' (VARIABLE) missing required null fields: endLoop", result.Errors[1].Message)
	assert.Equal(t, "resolver.steps[4].loop.steps[1]", result.Errors[1].Location)
	require.Len(t, result.Info, 1, "guidance is given once")
}
