package validation

import (
	"slices"
	"strings"

	"github.com/rendis/flowlint/pkg/schema"
)

// Status values the deserializer accepts, sorted.
var validStatuses = []string{"CONNECT", "DEPLOYED", "PUBLISH"}

// Status values that look plausible but fail deserialization.
var rejectedStatuses = map[string]bool{
	"DRAFT":    true,
	"ACTIVE":   true,
	"INACTIVE": true,
	"PENDING":  true,
}

// Conditional operations the runtime accepts, sorted.
var validOperations = []string{
	"CONTAINS", "DOES_NOT_CONTAIN", "DOES_NOT_END_WITH", "DOES_NOT_MATCH_REGEX",
	"DOES_NOT_START_WITH", "ENDS_WITH", "EQ", "EQ_IGNORE_CASE", "EXISTS",
	"GREATER_THAN", "GREATER_THAN_OR_EQ", "LENGTH_EQ", "LESS_THAN",
	"LESS_THAN_OR_EQ", "MATCHES_REGEX", "NEQ", "NONE", "NOT_EQ", "NOT_EXISTS",
	"STARTS_WITH", "TYPE_OF",
}

// Common misnomers mapped to the canonical operation.
var operationMisnomers = map[string]string{
	"GT":         "GREATER_THAN",
	"LT":         "LESS_THAN",
	"GTE":        "GREATER_THAN_OR_EQ",
	"LTE":        "LESS_THAN_OR_EQ",
	"!=":         "NOT_EQ",
	"==":         "EQ",
	"EQUALS":     "EQ",
	"NOT_EQUALS": "NOT_EQ",
}

// validateEnums checks status and every conditional operation at every depth.
func validateEnums(flow *schema.Flow, result *schema.ValidationResult) {
	validateStatus(flow, result)
	validateOperations(flow, result)
}

func validateStatus(flow *schema.Flow, result *schema.ValidationResult) {
	valid := strings.Join(validStatuses, ", ")

	switch {
	case !flow.Status.Declared():
		result.AddWarning("status", schema.CodeMissingField, "Missing 'status' field")
		return
	case flow.Status.IsNull():
		result.AddErrorf("status", schema.CodeInvalidEnum, "Status is null. Use one of: %s", valid)
		return
	}

	status := flow.Status.Value
	switch {
	case slices.Contains(validStatuses, status):
	case rejectedStatuses[status]:
		result.AddErrorf("status", schema.CodeInvalidEnum,
			"Invalid status value '%s'. This will cause deserialization failure!", status)
		result.AddErrorf("status", schema.CodeInvalidEnum,
			"NEVER use '%s' - it's not a valid enum value", status)
		result.AddInfof("status", "Valid status values are: %s", valid)
	default:
		result.AddErrorf("status", schema.CodeInvalidEnum,
			"Unknown status value '%s'. Use one of: %s", status, valid)
	}
}

func validateOperations(flow *schema.Flow, result *schema.ValidationResult) {
	steps := resolverSteps(flow)
	if steps == nil {
		return
	}

	hint := "Valid operations: " + strings.Join(validOperations, ", ")
	walkSteps(steps, "resolver.steps", func(s *schema.Step, loc string, _ bool) {
		if !s.Object || s.Conditional.Value == nil {
			return
		}
		for _, e := range s.Conditional.Value.Expressions.Value {
			if !e.Operation.Declared() {
				continue
			}
			op := e.Operation.Value
			exprLoc := schema.JoinIndex(loc+".conditional.expressions", e.Index)
			if canonical, ok := operationMisnomers[op]; ok {
				result.AddErrorf(exprLoc, schema.CodeInvalidEnum,
					"Invalid conditional operation '%s' in step '%s', expression %d. Use '%s' instead",
					op, stepLabel(s), e.Index+1, canonical)
				result.AddInfo(exprLoc, hint)
				continue
			}
			if !slices.Contains(validOperations, op) {
				result.AddErrorf(exprLoc, schema.CodeInvalidEnum,
					"Unknown conditional operation '%s' in step '%s', expression %d",
					op, stepLabel(s), e.Index+1)
				result.AddInfo(exprLoc, hint)
			}
		}
	})
}
