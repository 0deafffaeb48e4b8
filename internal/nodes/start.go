// Package nodes implements the built-in node executors.
package nodes

import (
	"context"

	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/pkg/schema"
)

// Start exposes the workflow inputs as its outputs.
type Start struct{}

// Type implements engine.NodeExecutor.
func (Start) Type() schema.NodeType { return schema.NodeTypeStart }

// Execute implements engine.NodeExecutor.
func (Start) Execute(_ context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	return &engine.ExecutionResult{Outputs: ec.Runtime.IO.Inputs()}, nil
}
