package validation

import "github.com/rendis/flowrun/pkg/schema"

// Validator checks workflow schemas and run inputs before execution.
// Uses JSON Schema Draft 2020-12 for the wire format and for inputs.
type Validator interface {
	ValidateSchema(ws *schema.WorkflowSchema) error
	ValidateInputs(ws *schema.WorkflowSchema, inputs map[string]any) error
}

// TypeLookup reports whether an executor is registered for a node type.
type TypeLookup interface {
	Has(t schema.NodeType) bool
}
