package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/flowrun/pkg/schema"
)

// ExprEngine evaluates expr-lang expressions. Programs are compiled without
// a typed environment, so one program serves operands of any type and type
// errors surface when the program runs.
type ExprEngine struct {
	programs *programs[*vm.Program]
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: newPrograms(compileExpr)}
}

func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs expression with the keys of data as top-level variables.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	prg, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}

	out, err := vm.Run(prg, data)
	if err != nil {
		return nil, expressionError(schema.ErrCodeExecution, "expr evaluation failed", expression, err)
	}
	return out, nil
}

// EvaluateBool evaluates expression and requires a boolean result.
func (e *ExprEngine) EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"expr %q returned %T, expected bool", expression, out)
	}
	return b, nil
}

func compileExpr(expression string) (*vm.Program, error) {
	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, expressionError(schema.ErrCodeValidation, "expr compile error", expression, err)
	}
	return prg, nil
}

// expressionError wraps a library error with the offending expression.
func expressionError(code, what, expression string, err error) *schema.FlowError {
	return schema.NewErrorf(code, "%s in %q: %s", what, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

var _ Engine = (*ExprEngine)(nil)
