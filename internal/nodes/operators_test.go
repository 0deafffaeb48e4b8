package nodes

import (
	"testing"

	"github.com/rendis/flowrun/internal/state"
	"github.com/rendis/flowrun/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func val(v any) *state.Value {
	typ, items := schema.InferType(v)
	return &state.Value{Value: v, Type: typ, ItemsType: items}
}

func TestOperators_Evaluate(t *testing.T) {
	ops := NewOperators()

	tests := []struct {
		name  string
		op    schema.ConditionOperator
		left  *state.Value
		right *state.Value
		want  bool
	}{
		{"empty array is_empty", schema.OpIsEmpty, val([]any{}), nil, true},
		{"empty array is_not_empty", schema.OpIsNotEmpty, val([]any{}), nil, false},
		{"untyped empty array is_empty", schema.OpIsEmpty, &state.Value{Value: []any{}, Type: schema.TypeArray}, nil, true},
		{"array is_not_empty", schema.OpIsNotEmpty, val([]any{"a"}), nil, true},
		{"array contains", schema.OpContains, val([]any{"a", "b"}), val("b"), true},
		{"array not_contains", schema.OpNotContains, val([]any{1.0, 2.0}), val(3), true},

		{"string eq", schema.OpEq, val("x"), val("x"), true},
		{"string neq", schema.OpNeq, val("x"), val("y"), true},
		{"string contains", schema.OpContains, val("hello"), val("ell"), true},
		{"string not_contains", schema.OpNotContains, val("hello"), val("z"), true},
		{"string in", schema.OpIn, val("b"), val([]any{"a", "b"}), true},
		{"string nin", schema.OpNin, val("c"), val([]any{"a", "b"}), true},
		{"string is_empty", schema.OpIsEmpty, val(""), nil, true},
		{"string vs number eq is false", schema.OpEq, val("1"), val(1), false},
		{"string gt unsupported", schema.OpGt, val("b"), val("a"), false},

		{"int gt float", schema.OpGt, val(5), val(1.5), true},
		{"number lte", schema.OpLte, val(2.0), val(2), true},
		{"number lt", schema.OpLt, val(3), val(2), false},
		{"number gte", schema.OpGte, val(2), val(2), true},
		{"number eq mixed", schema.OpEq, val(2), val(2.0), true},
		{"number in", schema.OpIn, val(2), val([]any{1.0, 2.0}), true},
		{"number is_not_empty", schema.OpIsNotEmpty, val(0), nil, true},
		{"number vs string", schema.OpGt, val(2), val("1"), false},

		{"bool is_true", schema.OpIsTrue, val(true), nil, true},
		{"bool is_false", schema.OpIsFalse, val(true), nil, false},
		{"bool eq", schema.OpEq, val(false), val(false), true},

		{"object is_empty", schema.OpIsEmpty, val(map[string]any{}), nil, true},
		{"object is_not_empty", schema.OpIsNotEmpty, val(map[string]any{"k": 1}), nil, true},
		{"object eq unsupported", schema.OpEq, val(map[string]any{}), val(map[string]any{}), false},

		{"unresolved left is_empty", schema.OpIsEmpty, nil, nil, true},
		{"unresolved left is_not_empty", schema.OpIsNotEmpty, nil, nil, false},
		{"unresolved left eq", schema.OpEq, nil, val("x"), false},
		{"missing right", schema.OpEq, val("x"), nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ops.Evaluate(t.Context(), tc.op, tc.left, tc.right)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOperators_UnknownOperator(t *testing.T) {
	_, err := NewOperators().Evaluate(t.Context(), "approx", val(1), val(1))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.ErrorCode(err))
}

func TestUnary(t *testing.T) {
	assert.True(t, Unary(schema.OpIsEmpty))
	assert.True(t, Unary(schema.OpIsTrue))
	assert.False(t, Unary(schema.OpEq))
	assert.False(t, Unary(schema.OpContains))
}
