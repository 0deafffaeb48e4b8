package schema

import (
	"encoding/json"
	"reflect"
)

// VariableType is the runtime type tag carried by variables and resolved
// values.
type VariableType string

const (
	TypeString  VariableType = "string"
	TypeNumber  VariableType = "number"
	TypeInteger VariableType = "integer"
	TypeBoolean VariableType = "boolean"
	TypeObject  VariableType = "object"
	TypeArray   VariableType = "array"
	TypeNull    VariableType = "null"
)

// IsNumeric reports whether t is number or integer.
func (t VariableType) IsNumeric() bool {
	return t == TypeNumber || t == TypeInteger
}

// InferType derives the type tag of a Go value decoded from JSON or built
// in code. Array element types come from the first element; an empty array
// reports TypeString as its element type so emptiness checks stay typed.
func InferType(v any) (VariableType, VariableType) {
	switch val := v.(type) {
	case nil:
		return TypeNull, ""
	case string:
		return TypeString, ""
	case bool:
		return TypeBoolean, ""
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger, ""
	case float32, float64:
		return TypeNumber, ""
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return TypeInteger, ""
		}
		return TypeNumber, ""
	case map[string]any:
		return TypeObject, ""
	case []any:
		if len(val) == 0 {
			return TypeArray, TypeString
		}
		items, _ := InferType(val[0])
		return TypeArray, items
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return TypeNull, ""
		}
		return InferType(rv.Elem().Interface())
	case reflect.Map, reflect.Struct:
		return TypeObject, ""
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return TypeArray, TypeString
		}
		items, _ := InferType(rv.Index(0).Interface())
		return TypeArray, items
	case reflect.String:
		return TypeString, ""
	case reflect.Bool:
		return TypeBoolean, ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, ""
	case reflect.Float32, reflect.Float64:
		return TypeNumber, ""
	}
	return TypeObject, ""
}

// AsFloat64 converts any value InferType reports as number or integer,
// including json.Number and sized Go numerics, to float64.
func AsFloat64(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	if t, _ := InferType(v); !t.IsNumeric() {
		return 0, false
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch {
	case rv.CanFloat():
		return rv.Float(), true
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	}
	return 0, false
}
