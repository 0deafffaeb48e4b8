package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/rendis/flowrun/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const workflowSchemaURL = "https://flowrun.dev/schemas/workflow.json"

//go:embed workflow.schema.json
var workflowSchemaJSON string

var printer = message.NewPrinter(language.English)

// JSONSchemaValidator checks the wire shape of workflow schemas and
// validates run inputs against caller-supplied schemas.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	workflow *jsonschema.Schema

	// Input schemas compiled so far, keyed by their raw text.
	inputs   sync.Map
	compiles singleflight.Group
}

// NewJSONSchemaValidator compiles the workflow wire schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	wf, err := compile(workflowSchemaURL, workflowSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("workflow schema: %w", err)
	}
	return &JSONSchemaValidator{workflow: wf}, nil
}

// ValidateWire checks ws against the workflow wire format. Each violated
// keyword becomes one issue located by its JSON pointer.
func (v *JSONSchemaValidator) ValidateWire(ws *schema.WorkflowSchema) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if ws == nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow schema is nil")
		return result
	}
	if err := check(v.workflow, ws, result); err != nil {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
	}
	return result
}

// ValidateInput checks input against a raw JSON Schema document. An empty
// document accepts anything.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	if input == nil {
		return schema.NewError(schema.ErrCodeValidation, "input is nil")
	}
	if len(inputSchema) == 0 {
		return nil
	}

	compiled, err := v.inputSchema(string(inputSchema))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid input schema").WithCause(err)
	}

	result := &schema.ValidationResult{}
	if err := check(compiled, input, result); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize input").WithCause(err)
	}
	return result.ToError()
}

// cachedSchemas reports how many distinct input schemas have been compiled.
func (v *JSONSchemaValidator) cachedSchemas() int {
	n := 0
	v.inputs.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (v *JSONSchemaValidator) inputSchema(raw string) (*jsonschema.Schema, error) {
	if s, ok := v.inputs.Load(raw); ok {
		return s.(*jsonschema.Schema), nil
	}
	s, err, _ := v.compiles.Do(raw, func() (any, error) {
		h := fnv.New64a()
		h.Write([]byte(raw))
		compiled, err := compile(fmt.Sprintf("flowrun://inputs/%x.json", h.Sum64()), raw)
		if err != nil {
			return nil, err
		}
		v.inputs.Store(raw, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return s.(*jsonschema.Schema), nil
}

// compile builds one schema document with its own compiler, so input
// schemas never share resources.
func compile(url, raw string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// check validates value against s and records every violation in result.
// The returned error is only about value not being JSON encodable.
func check(s *jsonschema.Schema, value any, result *schema.ValidationResult) error {
	// The validator expects json.Number for numbers, so go through the wire.
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
	if err != nil {
		return err
	}

	err = s.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return nil
	}
	addViolations(verr, result)
	return nil
}

func addViolations(verr *jsonschema.ValidationError, result *schema.ValidationResult) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			addViolations(cause, result)
		}
		return
	}
	result.AddError("/"+strings.Join(verr.InstanceLocation, "/"), schema.ErrCodeValidation, verr.ErrorKind.LocalizedString(printer))
}
