package validation

import (
	"encoding/json"

	"github.com/rendis/flowrun/pkg/schema"
)

// WorkflowValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema of the wire format)
// 2. Semantic (placement, identity, per-type data, registered types)
// 3. Graph (cycles, reachability)
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	types      TypeLookup
}

// NewWorkflowValidator creates a WorkflowValidator.
// lookup may be nil to skip executor existence checks.
func NewWorkflowValidator(lookup TypeLookup) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{
		jsonSchema: jsv,
		types:      lookup,
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and graph stages are skipped.
func (wv *WorkflowValidator) Validate(ws *schema.WorkflowSchema) *schema.ValidationResult {
	if ws == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow schema is nil")
		return r
	}

	result := wv.jsonSchema.ValidateWire(ws)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(ws, wv.types))

	// The graph may be malformed when semantic checks fail.
	if result.Valid() {
		result.Merge(validateGraph(ws))
	}
	return result
}

// ValidateSchema satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateSchema(ws *schema.WorkflowSchema) error {
	return wv.Validate(ws).ToError()
}

// ValidateInputs checks inputs against the outputs schema declared by the
// start node. A start node without declared outputs accepts anything.
func (wv *WorkflowValidator) ValidateInputs(ws *schema.WorkflowSchema, inputs map[string]any) error {
	if ws == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow schema is nil")
	}
	if inputs == nil {
		inputs = map[string]any{}
	}

	for _, n := range ws.Nodes {
		if n.Type != schema.NodeTypeStart {
			continue
		}
		var data schema.NodeData
		if err := decodeData(n, &data); err != nil {
			return schema.NewError(schema.ErrCodeValidation, err.Error())
		}
		if data.Outputs == nil {
			return nil
		}
		raw, err := json.Marshal(data.Outputs)
		if err != nil {
			return schema.NewError(schema.ErrCodeValidation, "failed to serialize start outputs schema").WithCause(err)
		}
		return wv.jsonSchema.ValidateInput(inputs, raw)
	}
	return schema.NewError(schema.ErrCodeNotFound, "workflow has no start node")
}
