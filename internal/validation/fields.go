package validation

import (
	"sort"
	"strings"

	"github.com/rendis/flowlint/pkg/schema"
)

// Top-level fields the importer requires on every flow.
var requiredTopLevelFields = []string{
	"clientId", "id", "name", "actionType", "inputName",
	"inputModelId", "outputModelId", "headerModelId", "resolver", "metaData",
}

// importField is an auxiliary field whose absence degrades import. Default is
// the JSON literal to suggest.
type importField struct {
	Name    string
	Default string
}

var importFields = []importField{
	{Name: "newName", Default: "null"},
	{Name: "description", Default: "null"},
	{Name: "chatWelcomeMessage", Default: "null"},
	{Name: "errorModelId", Default: `""`},
	{Name: "version", Default: `"1.0.1"`},
}

var requiredModelFields = []string{
	"id", "name", "jsonSchema", "clientId", "version", "type", "preview",
	"uiSchema", "isReadOnly", "imageUrl", "groupId", "resourceType",
	"deleted", "isCommunityCreated", "dataModel",
}

// Step-body keys every step must declare, as null when unused.
var requiredStepNullFields = []string{
	"actionId", "inline", "function", "composite", "loop", "internalDatabase",
	"aiAction", "mcpClient", "logger", "downLoadFile", "endLoop", "trigger",
	"converter", "variables", "state", "conditional", "lambdaFunction",
	"outputSchema", "prevStep", "enableDebug", "description", "debugBreakAfter",
	"configuredStepSetting", "filter", "limit", "splitOut", "aggregate",
	"merge", "aiAgent", "settings",
}

// validateFields checks presence of the top-level, auxiliary, model and
// per-step fields the downstream deserializer depends on.
func validateFields(flow *schema.Flow, result *schema.ValidationResult) {
	if missing := flow.Missing(requiredTopLevelFields); len(missing) > 0 {
		result.AddErrorf("", schema.CodeMissingField,
			"Missing required top-level fields: %s", strings.Join(missing, ", "))
		result.AddInfo("", "Copy these fields from the base flow template")
	}

	for _, f := range importFields {
		if !flow.Declares(f.Name) {
			result.AddWarningf(f.Name, schema.CodeImportField,
				"Missing '%s' field - may cause import issues", f.Name)
			result.AddInfof(f.Name, "Add \"%s\": %s to prevent 'null' import errors", f.Name, f.Default)
		}
	}

	for _, b := range flow.Models() {
		validateModel(b, result)
	}

	validateStepNullFields(flow, result)
}

func validateModel(b schema.ModelBinding, result *schema.ValidationResult) {
	switch {
	case !b.Model.Declared():
		result.AddErrorf(b.ModelKey, schema.CodeNullModel,
			"Missing '%s' object. This will cause a null dereference on import!", b.ModelKey)
		result.AddInfof(b.ModelKey, "Copy the complete %s object from the base flow template", b.ModelKey)
		return
	case b.Model.IsNull():
		result.AddErrorf(b.ModelKey, schema.CodeNullModel,
			"'%s' is null. Import will fail with: Cannot invoke DataModelInput.getId() because model is null", b.ModelKey)
		result.AddInfof(b.ModelKey, "Copy the complete %s object from the base flow template", b.ModelKey)
		return
	case b.Model.Value == nil:
		result.AddErrorf(b.ModelKey, schema.CodeStructure,
			"'%s' must be an object, got %s", b.ModelKey, b.Model.Raw.Kind)
		return
	}

	model := b.Model.Value
	if missing := model.Missing(requiredModelFields); len(missing) > 0 {
		result.AddErrorf(b.ModelKey, schema.CodeMissingField,
			"%s missing required fields: %s", b.ModelKey, strings.Join(missing, ", "))
	}

	if !b.ModelID.Declared() {
		result.AddErrorf(b.IDKey, schema.CodeMissingField, "Missing '%s' field", b.IDKey)
		return
	}
	if model.ID.Declared() && !b.ModelID.Raw.Equal(model.ID.Raw) {
		result.AddErrorf(b.IDKey, schema.CodeModelMismatch,
			"%s ('%s') doesn't match %s.id ('%s')",
			b.IDKey, b.ModelID.Raw.Text(), b.ModelKey, model.ID.Raw.Text())
	}
}

func validateStepNullFields(flow *schema.Flow, result *schema.ValidationResult) {
	steps := resolverSteps(flow)
	if steps == nil {
		return
	}

	reported := false
	walkSteps(steps, "resolver.steps", func(s *schema.Step, loc string, nested bool) {
		if !s.Object {
			return
		}
		missing := s.Missing(requiredStepNullFields)
		if len(missing) == 0 {
			return
		}
		sort.Strings(missing)
		kind := "Step"
		if nested {
			kind = "Nested step"
		}
		result.AddErrorf(loc, schema.CodeNullField,
			"%s '%s' (%s) missing required null fields: %s",
			kind, stepLabel(s), stepTypeLabel(s), strings.Join(missing, ", "))
		reported = true
	})
	if reported {
		result.AddInfo("", "Steps must explicitly declare ALL step-type fields as null, even if unused")
	}
}
