package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rendis/flowlint/pkg/schema"
)

var (
	arrayIndex      = regexp.MustCompile(`\[[0-9]+\]`)
	inlineCodeRisks = []struct {
		pattern *regexp.Regexp
		message string
	}{
		{regexp.MustCompile(`flattenedRow\[1\]`), "This caused 'Index 1 out of bounds' error in past flows"},
		{regexp.MustCompile(`\.output\.[a-zA-Z]+\[[0-9]+\]`), "Hardcoded array access may cause bounds errors"},
	}
	requiredFunctionFields = []string{"id", "groupId", "name", "version", "connectorId"}
)

// validateSteps checks the resolver's step lists at every depth: each step's
// shape, its type-specific body, and id uniqueness within each scope.
func validateSteps(flow *schema.Flow, result *schema.ValidationResult) {
	switch {
	case !flow.Resolver.Declared():
		result.AddWarning("resolver", schema.CodeStructure, "No steps found in resolver")
		return
	case flow.Resolver.Value == nil:
		result.AddErrorf("resolver", schema.CodeStructure, "Resolver must be an object, got %s", flow.Resolver.Raw.Kind)
		return
	}

	steps := flow.Resolver.Value.Steps
	switch {
	case !steps.Declared():
		result.AddWarning("resolver", schema.CodeStructure, "No steps found in resolver")
		return
	case steps.Value == nil:
		result.AddErrorf("resolver.steps", schema.CodeStructure, "Steps must be an array, got %s", steps.Raw.Kind)
		return
	}

	walkSteps(steps.Value, "resolver.steps", func(s *schema.Step, loc string, _ bool) {
		validateStep(s, loc, result)
	})
	walkScopes(steps.Value, "resolver.steps", func(scope []*schema.Step, path string) {
		validateUniqueIDs(scope, path, result)
	})
}

func validateStep(s *schema.Step, loc string, result *schema.ValidationResult) {
	if !s.Object {
		result.AddErrorf(loc, schema.CodeStructure, "Step must be an object, got %s", s.Raw().Kind)
		return
	}
	if !s.Type.Declared() {
		result.AddError(loc, schema.CodeMissingField, "Missing 'type' field")
		return
	}
	if s.ID.Value == "" {
		result.AddError(loc, schema.CodeMissingField, "Missing 'id' field")
	}
	if !s.StepType().Valid() {
		names := make([]string, len(schema.StepTypes))
		for i, t := range schema.StepTypes {
			names[i] = string(t)
		}
		result.AddErrorf(loc, schema.CodeInvalidEnum, "Invalid step type '%s'. Use one of: %s",
			s.Type.Raw.Text(), strings.Join(names, ", "))
		return
	}

	switch s.StepType() {
	case schema.StepTypeInline:
		validateInlineStep(s, loc, result)
	case schema.StepTypeComposite:
		validateGraphBody("composite", s.Composite, loc, result)
	case schema.StepTypeLoop:
		validateGraphBody("loop", s.Loop, loc, result)
	case schema.StepTypeConditional:
		validateConditionalStep(s, loc, result)
	case schema.StepTypeAPI:
		validateAPIStep(s, loc, result)
	}
}

func validateInlineStep(s *schema.Step, loc string, result *schema.ValidationResult) {
	if !s.Inline.Declared() {
		result.AddError(loc, schema.CodeMissingField, "INLINE step missing 'inline' configuration")
		return
	}
	inline := s.Inline.Value
	if inline == nil {
		result.AddErrorf(loc, schema.CodeStructure, "INLINE step 'inline' must be an object, got %s", s.Inline.Raw.Kind)
		return
	}

	if !inline.UICode.Declared() {
		result.AddError(loc, schema.CodeMissingField, "INLINE step missing 'uiCode' field (required by the flow editor)")
	}
	if !inline.QueryExecutor.Declared() {
		result.AddError(loc, schema.CodeMissingField, "INLINE step missing 'queryExecutor' field (required by the flow editor)")
	}
	if !inline.Code.Declared() {
		result.AddError(loc, schema.CodeMissingField, "INLINE step missing 'code' field")
		return
	}
	if inline.Code.Raw.Kind != schema.KindString {
		result.AddError(loc, schema.CodeStructure, "Inline code must be a string")
		return
	}
	validateInlineCode(inline.Code.Value, loc, result)
}

// validateInlineCode flags array positions baked into inline code. They are
// a frequent source of out-of-bounds failures at run time.
func validateInlineCode(code, loc string, result *schema.ValidationResult) {
	if matches := arrayIndex.FindAllString(code, -1); len(matches) > 0 {
		result.AddWarningf(loc, schema.CodeHardcodedIndex,
			"Found hardcoded array indices %s. Consider using semantic references instead", strings.Join(matches, " "))
	}
	for _, risk := range inlineCodeRisks {
		if risk.pattern.MatchString(code) {
			result.AddWarning(loc, schema.CodeHardcodedIndex, risk.message)
		}
	}
}

func validateGraphBody(key string, body schema.Field[*schema.Graph], loc string, result *schema.ValidationResult) {
	kind := strings.ToUpper(key)
	if !body.Declared() {
		result.AddErrorf(loc, schema.CodeMissingField, "%s step missing '%s' configuration", kind, key)
		return
	}
	if body.Value == nil {
		result.AddErrorf(loc, schema.CodeStructure, "%s step '%s' must be an object, got %s", kind, key, body.Raw.Kind)
		return
	}
	steps := body.Value.Steps
	if !steps.Declared() {
		result.AddErrorf(loc, schema.CodeMissingField, "%s step missing 'steps' array", kind)
		return
	}
	if steps.Value == nil {
		result.AddErrorf(loc+"."+key+".steps", schema.CodeStructure, "%s steps must be an array, got %s", kind, steps.Raw.Kind)
	}
}

func validateConditionalStep(s *schema.Step, loc string, result *schema.ValidationResult) {
	if !s.Conditional.Declared() {
		result.AddError(loc, schema.CodeMissingField, "CONDITIONAL step missing 'conditional' configuration")
		return
	}
	cond := s.Conditional.Value
	if cond == nil {
		result.AddErrorf(loc, schema.CodeStructure, "CONDITIONAL step 'conditional' must be an object, got %s", s.Conditional.Raw.Kind)
		return
	}
	if cond.Expressions.IsSet() && cond.Expressions.Value == nil {
		result.AddErrorf(loc+".conditional.expressions", schema.CodeStructure,
			"Conditional expressions must be an array, got %s", cond.Expressions.Raw.Kind)
	}
}

func validateAPIStep(s *schema.Step, loc string, result *schema.ValidationResult) {
	fn := s.Function.Value
	if fn == nil {
		result.AddError(loc, schema.CodeMissingField, "API step missing 'function' configuration")
		return
	}
	for _, field := range fn.Missing(requiredFunctionFields) {
		result.AddErrorf(loc, schema.CodeMissingField, "API step missing required function field '%s'", field)
	}
	cfg := fn.Configuration
	if !cfg.IsSet() || !cfg.Value.IsObject() {
		result.AddWarning(loc, schema.CodeMissingField, "API step missing 'configuration' object")
		return
	}
	if !cfg.Value.Has("authType") {
		result.AddWarning(loc, schema.CodeMissingField, "API step missing 'authType' in configuration")
	}
}

// validateUniqueIDs reports ids declared more than once in one scope. The
// reachability lookup resolves such ids to their first declaration.
func validateUniqueIDs(steps []*schema.Step, path string, result *schema.ValidationResult) {
	first := make(map[string]int, len(steps))
	for _, s := range steps {
		if !s.Object || s.ID.Value == "" {
			continue
		}
		if prev, dup := first[s.ID.Value]; dup {
			result.AddErrorf(schema.JoinIndex(path, s.Index), schema.CodeDuplicateID,
				"Duplicate step id '%s' (first declared at %s)", s.ID.Value, schema.JoinIndex(path, prev))
			continue
		}
		first[s.ID.Value] = s.Index
	}
}

// walkSteps calls fn for each step in document order, descending depth first
// into COMPOSITE and LOOP bodies right after their parent step.
func walkSteps(steps []*schema.Step, path string, fn func(s *schema.Step, loc string, nested bool)) {
	var walk func(steps []*schema.Step, path string, nested bool)
	walk = func(steps []*schema.Step, path string, nested bool) {
		for _, s := range steps {
			loc := schema.JoinIndex(path, s.Index)
			fn(s, loc, nested)
			for _, ng := range s.NestedGraphs() {
				walk(ng.Graph.StepList(), loc+"."+ng.Key+".steps", true)
			}
		}
	}
	walk(steps, path, false)
}

// walkScopes calls fn once per step list: the top level first, then each
// nested body depth first.
func walkScopes(steps []*schema.Step, path string, fn func(steps []*schema.Step, path string)) {
	fn(steps, path)
	for _, s := range steps {
		for _, ng := range s.NestedGraphs() {
			walkScopes(ng.Graph.StepList(), schema.JoinIndex(path, s.Index)+"."+ng.Key+".steps", fn)
		}
	}
}

// resolverSteps returns the top-level steps, or nil when the resolver or its
// step list is missing or mistyped.
func resolverSteps(flow *schema.Flow) []*schema.Step {
	if flow.Resolver.Value == nil {
		return nil
	}
	return flow.Resolver.Value.Steps.Value
}

func stepLabel(s *schema.Step) string {
	if s.ID.Value != "" {
		return s.ID.Value
	}
	return fmt.Sprintf("step_%d", s.Index)
}

func stepTypeLabel(s *schema.Step) string {
	if s.Type.Value != "" {
		return s.Type.Value
	}
	return "UNKNOWN"
}
