package validation

import (
	"regexp"
	"strings"

	"github.com/rendis/flowlint/pkg/schema"
)

// knownBadReference reads index 1 of a row list that usually holds a single
// element.
const knownBadReference = "flattenOrderDetails.output.flattenedRow[1]"

var indexedTemplateRef = regexp.MustCompile(`\{\{[^}]+\[[0-9]+\][^}]*\}\}`)

// validateDataReferences scans every string value in the flow for template
// references that address array elements by position.
func validateDataReferences(flow *schema.Flow, result *schema.ValidationResult) {
	indexed := false
	// The callback never returns an error, so neither does the walk.
	_ = schema.Walk(flow.Raw(), "", func(path string, v *schema.Value) error {
		if v.Kind != schema.KindString {
			return nil
		}
		if strings.Contains(v.Str, knownBadReference) {
			result.AddErrorf(path, schema.CodeBadReference,
				"Found problematic reference '%s' that causes bounds errors", knownBadReference)
			result.AddInfo(path, "This reference reads index [1] of an array that may only have 1 element")
		}
		if refs := indexedTemplateRef.FindAllString(v.Str, -1); len(refs) > 0 {
			result.AddWarningf(path, schema.CodeHardcodedIndex,
				"Found hardcoded array indices in data references: %s", strings.Join(refs, ", "))
			indexed = true
		}
		return nil
	})
	if indexed {
		result.AddInfo("", "Consider using semantic field names instead of array positions")
	}
}
