package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rendis/flowlint/pkg/schema"
)

var camelCase = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)

// NamingViolation is the disallowed construct found in an identifier.
type NamingViolation string

const (
	ViolationNone        NamingViolation = ""
	ViolationEmpty       NamingViolation = "is empty"
	ViolationSpace       NamingViolation = "contains spaces"
	ViolationHyphen      NamingViolation = "contains hyphens"
	ViolationUnderscore  NamingViolation = "contains underscores"
	ViolationUppercase   NamingViolation = "starts with an uppercase letter"
	ViolationOtherFormat NamingViolation = "must start with a lowercase letter followed only by letters and digits"
)

// ClassifyName returns how id breaks lower camel case, or ViolationNone. When several apply the first in the order space, hyphen,
// underscore, uppercase is reported.
func ClassifyName(id string) NamingViolation {
	if camelCase.MatchString(id) {
		return ViolationNone
	}
	first, _ := utf8.DecodeRuneInString(id)
	switch {
	case id == "":
		return ViolationEmpty
	case strings.ContainsRune(id, ' '):
		return ViolationSpace
	case strings.ContainsRune(id, '-'):
		return ViolationHyphen
	case strings.ContainsRune(id, '_'):
		return ViolationUnderscore
	case unicode.IsUpper(first):
		return ViolationUppercase
	default:
		return ViolationOtherFormat
	}
}

func namingMessage(what, id string, v NamingViolation) string {
	return fmt.Sprintf("Invalid %s '%s': %s - use camelCase (start with lowercase, letters and digits only)", what, id, v)
}

// validateNaming checks the flow id and name and every step id at every depth.
func validateNaming(flow *schema.Flow, result *schema.ValidationResult) {
	flowBad := false
	for _, f := range []struct {
		key   string
		field schema.Field[string]
	}{{"id", flow.ID}, {"name", flow.Name}} {
		if !f.field.IsSet() || f.field.Value == "" {
			continue
		}
		if v := ClassifyName(f.field.Value); v != ViolationNone {
			result.AddError(f.key, schema.CodeNaming, namingMessage("flow "+f.key, f.field.Value, v))
			flowBad = true
		}
	}
	if flowBad {
		result.AddInfo("", "Good flow names: 'syncShopifyOrders', 'processPayments', 'updateInventory'")
	}

	steps := resolverSteps(flow)
	if steps == nil {
		return
	}
	stepBad := false
	walkSteps(steps, "resolver.steps", func(s *schema.Step, loc string, nested bool) {
		if !s.Object || s.ID.Value == "" {
			return
		}
		id := s.ID.Value
		what := "step id"
		if nested {
			what = "nested step id"
		}
		if s.StepType() == schema.StepTypeComposite {
			what = "COMPOSITE " + what
			validateEndpointName(s, loc, result)
		}
		if v := ClassifyName(id); v != ViolationNone {
			result.AddError(loc, schema.CodeNaming, namingMessage(what, id, v))
			stepBad = true
		}
	})
	if stepBad {
		result.AddInfo("", "Good step ids: 'transformData', 'validateInput', 'processOrders'")
	}
}

// validateEndpointName expects a COMPOSITE step that calls a connector
// endpoint to be named after that endpoint.
func validateEndpointName(s *schema.Step, loc string, result *schema.ValidationResult) {
	fn := s.Function.Value
	if fn == nil || fn.Name.Value == "" || fn.Name.Value == s.ID.Value {
		return
	}
	result.AddWarningf(loc, schema.CodeEndpointName,
		"COMPOSITE step id '%s' doesn't match connector endpoint '%s'", s.ID.Value, fn.Name.Value)
	result.AddInfo(loc, "COMPOSITE steps should use the exact connector endpoint name")
	result.AddInfof(loc, "Consider renaming the step to '%s'", fn.Name.Value)
}
