package state

import (
	"fmt"

	"github.com/rendis/flowrun/internal/expressions"
	"github.com/rendis/flowrun/pkg/schema"
)

// Value is a resolved reference or constant with its type metadata.
type Value struct {
	Value     any
	Type      schema.VariableType
	ItemsType schema.VariableType
}

// ParseValue resolves a constant or reference. A reference that does not
// resolve yields (nil, nil).
func (s *State) ParseValue(fv schema.FlowValue) (*Value, error) {
	switch fv.Type {
	case schema.FlowValueConstant:
		if !fv.HasContent() {
			return nil, schema.NewError(schema.ErrCodeInvalidRef, "constant value has no content")
		}
		return typed(fv.Content, "", ""), nil
	case schema.FlowValueRef:
		return s.ParseRef(fv)
	case "":
		return nil, schema.NewError(schema.ErrCodeInvalidRef, "value has no type")
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRef, "unsupported value type %q", fv.Type)
	}
}

// ParseRef resolves a reference of the form [nodeID, key, ...path]. The
// node output map is consulted first, then the variable store. Remaining
// path segments walk into nested values.
func (s *State) ParseRef(fv schema.FlowValue) (*Value, error) {
	if fv.Type != schema.FlowValueRef {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRef, "expected ref, got %q", fv.Type)
	}
	path, err := refPath(fv.Content)
	if err != nil {
		return nil, err
	}
	nodeID, key, rest := path[0], path[1], path[2:]

	if outputs, ok := s.GetNodeOutputs(nodeID); ok {
		if base, ok := outputs[key]; ok {
			return walk(base, "", "", rest), nil
		}
	}

	v, ok := s.vars.GetVariable(key, nodeID)
	if !ok {
		return nil, nil
	}
	return walk(v.Value, v.Type, v.ItemsType, rest), nil
}

// walk follows rest into base. Declared type metadata applies only when no
// path segments remain.
func walk(base any, typ, items schema.VariableType, rest []string) *Value {
	if len(rest) == 0 {
		return typed(base, typ, items)
	}
	val, err := expressions.GetPath(base, rest)
	if err != nil {
		return nil
	}
	return typed(val, "", "")
}

func typed(v any, typ, items schema.VariableType) *Value {
	if typ == "" {
		typ, items = schema.InferType(v)
	}
	if typ == schema.TypeArray && items == "" {
		_, items = schema.InferType(v)
		if items == "" {
			items = schema.TypeString
		}
	}
	return &Value{Value: v, Type: typ, ItemsType: items}
}

func refPath(content any) ([]string, error) {
	var raw []any
	switch c := content.(type) {
	case []any:
		raw = c
	case []string:
		raw = make([]any, len(c))
		for i, v := range c {
			raw[i] = v
		}
	case nil:
		return nil, schema.NewError(schema.ErrCodeInvalidRef, "ref has no content")
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRef, "ref content must be an array, got %T", content)
	}

	if len(raw) < 2 {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidRef,
			"ref content needs at least [nodeID, key], got %d segments", len(raw))
	}
	path := make([]string, len(raw))
	for i, seg := range raw {
		switch v := seg.(type) {
		case string:
			path[i] = v
		case float64, int:
			path[i] = fmt.Sprint(v)
		default:
			return nil, schema.NewErrorf(schema.ErrCodeInvalidRef, "ref segment %d has type %T", i, seg)
		}
	}
	return path, nil
}
