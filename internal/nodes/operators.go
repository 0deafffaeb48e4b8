package nodes

import (
	"context"

	"github.com/rendis/flowrun/internal/expressions"
	"github.com/rendis/flowrun/internal/state"
	"github.com/rendis/flowrun/pkg/schema"
)

// rule is one supported (left type, operator) pair. right lists the
// accepted right operand types; an empty list means the operator is unary.
type rule struct {
	expression string
	right      []schema.VariableType
	anyRight   bool
}

var (
	numeric = []schema.VariableType{schema.TypeNumber, schema.TypeInteger}
	arrays  = []schema.VariableType{schema.TypeArray}
	strs    = []schema.VariableType{schema.TypeString}
	bools   = []schema.VariableType{schema.TypeBoolean}

	isEmpty    = rule{expression: "left == nil || len(left) == 0"}
	isNotEmpty = rule{expression: "left != nil && len(left) > 0"}
	never      = rule{expression: "false"}
	always     = rule{expression: "true"}
)

var numberRules = map[schema.ConditionOperator]rule{
	schema.OpEq:         {expression: "left == right", right: numeric},
	schema.OpNeq:        {expression: "left != right", right: numeric},
	schema.OpGt:         {expression: "left > right", right: numeric},
	schema.OpGte:        {expression: "left >= right", right: numeric},
	schema.OpLt:         {expression: "left < right", right: numeric},
	schema.OpLte:        {expression: "left <= right", right: numeric},
	schema.OpIn:         {expression: "left in right", right: arrays},
	schema.OpNin:        {expression: "not (left in right)", right: arrays},
	schema.OpIsEmpty:    never,
	schema.OpIsNotEmpty: always,
}

// operatorRules is keyed by the left operand type.
var operatorRules = map[schema.VariableType]map[schema.ConditionOperator]rule{
	schema.TypeString: {
		schema.OpEq:          {expression: "left == right", right: strs},
		schema.OpNeq:         {expression: "left != right", right: strs},
		schema.OpContains:    {expression: "left contains right", right: strs},
		schema.OpNotContains: {expression: "not (left contains right)", right: strs},
		schema.OpIn:          {expression: "left in right", right: arrays},
		schema.OpNin:         {expression: "not (left in right)", right: arrays},
		schema.OpIsEmpty:     isEmpty,
		schema.OpIsNotEmpty:  isNotEmpty,
	},
	schema.TypeNumber:  numberRules,
	schema.TypeInteger: numberRules,
	schema.TypeBoolean: {
		schema.OpEq:         {expression: "left == right", right: bools},
		schema.OpNeq:        {expression: "left != right", right: bools},
		schema.OpIsTrue:     {expression: "left == true"},
		schema.OpIsFalse:    {expression: "left == false"},
		schema.OpIn:         {expression: "left in right", right: arrays},
		schema.OpNin:        {expression: "not (left in right)", right: arrays},
		schema.OpIsEmpty:    never,
		schema.OpIsNotEmpty: always,
	},
	schema.TypeObject: {
		schema.OpIsEmpty:    isEmpty,
		schema.OpIsNotEmpty: isNotEmpty,
	},
	schema.TypeArray: {
		schema.OpContains:    {expression: "right in left", anyRight: true},
		schema.OpNotContains: {expression: "not (right in left)", anyRight: true},
		schema.OpIsEmpty:     isEmpty,
		schema.OpIsNotEmpty:  isNotEmpty,
	},
	schema.TypeNull: {
		schema.OpIsEmpty:    always,
		schema.OpIsNotEmpty: never,
	},
}

// Operators evaluates condition operators.
type Operators struct {
	expr *expressions.ExprEngine
}

// NewOperators returns an evaluator backed by an expr engine.
func NewOperators() *Operators {
	return &Operators{expr: expressions.NewExprEngine()}
}

// Unary reports whether op ignores its right operand.
func Unary(op schema.ConditionOperator) bool {
	switch op {
	case schema.OpIsEmpty, schema.OpIsNotEmpty, schema.OpIsTrue, schema.OpIsFalse:
		return true
	}
	return false
}

// Evaluate applies op to left and right. A nil left is treated as null.
// Unsupported combinations evaluate to false; an unknown operator is an
// error.
func (o *Operators) Evaluate(ctx context.Context, op schema.ConditionOperator, left, right *state.Value) (bool, error) {
	if !op.Valid() {
		return false, schema.NewErrorf(schema.ErrCodeValidation, "unknown condition operator %q", op)
	}

	leftType := schema.TypeNull
	var leftVal any
	if left != nil && left.Value != nil {
		leftType, leftVal = left.Type, left.Value
	}

	r, ok := operatorRules[leftType][op]
	if !ok {
		return false, nil
	}

	env := map[string]any{"left": leftVal}
	if len(r.right) > 0 || r.anyRight {
		if right == nil || right.Value == nil {
			return false, nil
		}
		if !r.anyRight && !acceptsType(r.right, right.Type) {
			return false, nil
		}
		env["right"] = right.Value
	}

	result, err := o.expr.EvaluateBool(ctx, r.expression, env)
	if err != nil {
		// Operand shapes the rule table admits but expr rejects at run
		// time (e.g. in over a non-comparable element) count as no match.
		return false, nil
	}
	return result, nil
}

func acceptsType(allowed []schema.VariableType, t schema.VariableType) bool {
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}
