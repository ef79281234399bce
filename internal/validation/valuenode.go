package validation

import "github.com/rendis/flowlint/pkg/schema"

// isValueNode reports whether v carries all three ValueNode marker keys.
func isValueNode(v *schema.Value) bool {
	return v.Has("returnLiteral") && v.Has("symbolOrIndex") && v.Has("version")
}

// validateValueNodes searches the whole flow for ValueNode objects and
// requires each to carry a children array. The walk continues below every
// node, so children's value objects and unrelated siblings are all checked.
func validateValueNodes(flow *schema.Flow, result *schema.ValidationResult) {
	reported := false
	// The callback never returns an error, so neither does the walk.
	_ = schema.Walk(flow.Raw(), "", func(path string, v *schema.Value) error {
		if !v.IsObject() || !isValueNode(v) {
			return nil
		}
		children, ok := v.Get("children")
		switch {
		case !ok:
			result.AddErrorf(path, schema.CodeValueNode,
				"Missing 'children' array in queryExecutor structure at %s", displayPath(path))
			reported = true
		case !children.IsArray():
			result.AddErrorf(path, schema.CodeValueNode,
				"'children' must be an array in queryExecutor structure at %s, got %s", displayPath(path), children.Kind)
			reported = true
		}
		return nil
	})
	if reported {
		result.AddInfo("", "All queryExecutor value objects must have a 'children' array (can be empty)")
	}
}

func displayPath(path string) string {
	if path == "" {
		return "flow root"
	}
	return path
}
