package validation

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rendis/flowrun/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string) *schema.WorkflowSchema {
	t.Helper()
	var ws schema.WorkflowSchema
	require.NoError(t, json.Unmarshal([]byte(raw), &ws))
	return &ws
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.workflow)
}

func TestValidateWire(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name: "minimal",
			raw:  `{"nodes": [{"id": "s", "type": "start"}]}`,
		},
		{
			name: "nested blocks and null data",
			raw: `{"nodes": [
				{"id": "l", "type": "loop", "data": {"batchFor": {"type": "ref", "content": ["s", "xs"]}},
				 "blocks": [{"id": "b", "type": "llm", "data": null}], "edges": []}
			], "edges": [{"sourceNodeID": "s", "targetNodeID": "l", "sourcePortID": "defaultOutput"}]}`,
		},
		{
			name:    "no nodes",
			raw:     `{"nodes": [], "edges": []}`,
			wantErr: "/nodes",
		},
		{
			name:    "node without type",
			raw:     `{"nodes": [{"id": "s"}]}`,
			wantErr: "type",
		},
		{
			name:    "edge without target",
			raw:     `{"nodes": [{"id": "s", "type": "start"}], "edges": [{"sourceNodeID": "s"}]}`,
			wantErr: "targetNodeID",
		},
		{
			name:    "bad value type",
			raw:     `{"nodes": [{"id": "s", "type": "end", "data": {"inputsValues": {"x": {"type": "literal", "content": 1}}}}]}`,
			wantErr: "/nodes/0/data/inputsValues/x/type",
		},
		{
			name:    "nested node checked",
			raw:     `{"nodes": [{"id": "l", "type": "loop", "blocks": [{"type": "llm"}]}]}`,
			wantErr: "/nodes/0/blocks/0",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := v.ValidateWire(parse(t, tc.raw))
			if tc.wantErr == "" {
				assert.True(t, result.Valid(), "%v", result.Errors)
				return
			}
			require.False(t, result.Valid())
			assert.Equal(t, []string{schema.ErrCodeValidation}, result.Codes())
			assert.Contains(t, issuesText(result.Errors), tc.wantErr)
		})
	}
}

func TestValidateWire_Nil(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	result := v.ValidateWire(nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil")
}

func issuesText(issues []schema.ValidationIssue) string {
	var sb strings.Builder
	for _, is := range issues {
		sb.WriteString(is.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestValidateInput_NilInput(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateInput(nil, []byte(`{"type": "object"}`))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.ErrorCode(err))
}

func TestValidateInput_EmptySchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	assert.NoError(t, v.ValidateInput(map[string]any{"foo": "bar"}, nil), "nil schema means no validation")
	assert.NoError(t, v.ValidateInput(map[string]any{"foo": "bar"}, []byte{}), "empty schema means no validation")
}

func TestValidateInput_Types(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	inputSchema := []byte(`{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"cfg": {"type": "object", "properties": {"temperature": {"type": "number"}}}
		}
	}`)

	t.Run("valid", func(t *testing.T) {
		err := v.ValidateInput(map[string]any{
			"name":  "x",
			"count": 5,
			"tags":  []any{"a"},
			"cfg":   map[string]any{"temperature": 0.5},
		}, inputSchema)
		assert.NoError(t, err)
	})

	t.Run("missing required", func(t *testing.T) {
		err := v.ValidateInput(map[string]any{"count": 1}, inputSchema)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("wrong item type", func(t *testing.T) {
		err := v.ValidateInput(map[string]any{"name": "x", "tags": []any{1}}, inputSchema)
		require.Error(t, err)
	})

	t.Run("float is not an integer", func(t *testing.T) {
		err := v.ValidateInput(map[string]any{"name": "x", "count": 1.5}, inputSchema)
		require.Error(t, err)
	})

	t.Run("multiple violations", func(t *testing.T) {
		err := v.ValidateInput(map[string]any{"name": 1, "count": "two"}, inputSchema)
		require.Error(t, err)
		var fe *schema.FlowError
		require.ErrorAs(t, err, &fe)
		issues, ok := fe.Details["errors"].([]schema.ValidationIssue)
		require.True(t, ok)
		assert.GreaterOrEqual(t, len(issues), 2)
		assert.Contains(t, fe.Message, "more")
	})
}

func TestValidateInput_InvalidSchema(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateInput(map[string]any{}, []byte(`{"type": 42}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input schema")
}

func TestValidateInput_SchemaCaching(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	s := []byte(`{"type": "object", "properties": {"a": {"type": "string"}}}`)
	require.NoError(t, v.ValidateInput(map[string]any{"a": "x"}, s))
	require.NoError(t, v.ValidateInput(map[string]any{"a": "y"}, s))

	assert.Equal(t, 1, v.cachedSchemas())
}

func TestValidateInput_Concurrent(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	schema1 := []byte(`{"type": "object", "properties": {"a": {"type": "string"}}}`)
	schema2 := []byte(`{"type": "object", "properties": {"b": {"type": "integer"}}}`)

	var wg sync.WaitGroup
	errs := make([]error, 100)
	for i := range errs {
		wg.Go(func() {
			if i%2 == 0 {
				errs[i] = v.ValidateInput(map[string]any{"a": "hello"}, schema1)
			} else {
				errs[i] = v.ValidateInput(map[string]any{"b": 42}, schema2)
			}
		})
	}
	wg.Wait()

	for i, e := range errs {
		assert.NoError(t, e, "call %d", i)
	}
	assert.Equal(t, 2, v.cachedSchemas())
}
