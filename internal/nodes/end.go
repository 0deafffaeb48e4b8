package nodes

import (
	"context"

	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/pkg/schema"
)

// End publishes its resolved inputs as the workflow outputs.
type End struct{}

// Type implements engine.NodeExecutor.
func (End) Type() schema.NodeType { return schema.NodeTypeEnd }

// Execute implements engine.NodeExecutor.
func (End) Execute(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	ec.Runtime.IO.SetOutputs(ec.Inputs)
	return &engine.ExecutionResult{Outputs: ec.Inputs}, nil
}
