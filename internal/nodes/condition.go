package nodes

import (
	"context"

	"github.com/rendis/flowrun/internal/document"
	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/state"
	"github.com/rendis/flowrun/pkg/schema"
)

// Condition routes to the key of the first condition that holds. When none
// holds it returns no branch and every next node is followed.
type Condition struct {
	ops *Operators
}

// NewCondition creates a Condition executor.
func NewCondition() *Condition {
	return &Condition{ops: NewOperators()}
}

// Type implements engine.NodeExecutor.
func (*Condition) Type() schema.NodeType { return schema.NodeTypeCondition }

// Execute implements engine.NodeExecutor.
func (c *Condition) Execute(ctx context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	cfg, ok := ec.Node.Config.(*document.ConditionConfig)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "condition node has config %T", ec.Node.Config).
			WithNode(ec.Node.ID)
	}

	st := ec.Runtime.State
	for _, item := range cfg.Conditions {
		left, err := resolve(st, item.Value.Left)
		if err != nil {
			return nil, err
		}
		var right *state.Value
		if !Unary(item.Value.Operator) {
			if right, err = resolve(st, item.Value.Right); err != nil {
				return nil, err
			}
		}

		match, err := c.ops.Evaluate(ctx, item.Value.Operator, left, right)
		if err != nil {
			return nil, err
		}
		if match {
			return &engine.ExecutionResult{Outputs: map[string]any{}, Branch: item.Key}, nil
		}
	}
	return &engine.ExecutionResult{Outputs: map[string]any{}}, nil
}

func resolve(st *state.State, fv *schema.FlowValue) (*state.Value, error) {
	if fv == nil {
		return nil, nil
	}
	return st.ParseValue(*fv)
}
