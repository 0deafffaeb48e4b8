package nodes

import (
	"context"
	"reflect"

	"github.com/rendis/flowrun/internal/document"
	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/variable"
	"github.com/rendis/flowrun/pkg/schema"
	"golang.org/x/sync/errgroup"
)

// Loop variable keys bound under LocalsID(loopID) in each iteration.
const (
	LoopItemKey  = "item"
	LoopIndexKey = "index"
)

// LocalsID is the synthetic node ID owning a loop's per-iteration variables.
func LocalsID(loopID string) string {
	return loopID + "_locals"
}

// Loop runs its body once per element of batchFor, one iteration at a time.
type Loop struct{}

// Type implements engine.NodeExecutor.
func (Loop) Type() schema.NodeType { return schema.NodeTypeLoop }

// Execute implements engine.NodeExecutor.
func (Loop) Execute(ctx context.Context, ec *engine.ExecutionContext) (*engine.ExecutionResult, error) {
	node, rt := ec.Node, ec.Runtime

	cfg, ok := node.Config.(*document.LoopConfig)
	if !ok || cfg.BatchFor == nil {
		return nil, schema.NewError(schema.ErrCodeLoopInput, "loop node has no batchFor").WithNode(node.ID)
	}
	batch, err := rt.State.ParseRef(*cfg.BatchFor)
	if err != nil {
		return nil, err
	}
	if batch == nil || batch.Value == nil {
		return nil, schema.NewError(schema.ErrCodeLoopInput, "loop batchFor did not resolve").WithNode(node.ID)
	}
	if batch.Type != schema.TypeArray {
		return nil, schema.NewErrorf(schema.ErrCodeLoopInput, "loop batchFor must be an array, got %s", batch.Type).
			WithNode(node.ID)
	}
	if batch.ItemsType == "" {
		return nil, schema.NewError(schema.ErrCodeLoopInput, "loop batchFor has no element type").WithNode(node.ID)
	}
	items, ok := toSlice(batch.Value)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeLoopInput, "loop batchFor value is %T, not a list", batch.Value).
			WithNode(node.ID)
	}

	entries := node.EntryChildren()
	localsID := LocalsID(node.ID)

	for i, item := range items {
		if rt.Terminated() {
			break
		}

		sub := rt.Sub()
		sub.Variables.SetVariable(variable.Variable{NodeID: localsID, Key: LoopItemKey, Value: item, Type: batch.ItemsType})
		sub.Variables.SetVariable(variable.Variable{NodeID: localsID, Key: LoopIndexKey, Value: i, Type: schema.TypeInteger})
		ec.Container.Emit(ctx, rt, node.ID, schema.EventLoopIterStarted, map[string]any{"index": i})

		var g errgroup.Group
		for _, entry := range entries {
			g.Go(func() error {
				return ec.Container.ExecuteNode(ctx, sub, entry)
			})
		}
		err := g.Wait()
		sub.Dispose()
		if err != nil {
			return nil, err
		}
		ec.Container.Emit(ctx, rt, node.ID, schema.EventLoopIterCompleted, map[string]any{"index": i})
	}

	return &engine.ExecutionResult{Outputs: map[string]any{}}, nil
}

func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
