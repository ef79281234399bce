package validation

import "github.com/rendis/flowlint/pkg/schema"

// Validator checks flow documents before they are imported or deployed.
// Invalid input is reported through the result, never as an error.
type Validator interface {
	Validate(data []byte) *schema.ValidationResult
	ValidateDocument(doc *schema.Value) *schema.ValidationResult
	ValidateFlow(flow *schema.Flow) *schema.ValidationResult
}

// checker is one independent pass over a flow. It appends only to the
// result it is given.
type checker struct {
	name string
	run  func(flow *schema.Flow, result *schema.ValidationResult)
}

// checkers run in this order; their results are merged in this order
// regardless of whether they ran in parallel.
var checkers = []checker{
	{name: "fields", run: validateFields},
	{name: "enums", run: validateEnums},
	{name: "naming", run: validateNaming},
	{name: "steps", run: validateSteps},
	{name: "value_nodes", run: validateValueNodes},
	{name: "data_references", run: validateDataReferences},
	{name: "reachability", run: validateReachability},
}
