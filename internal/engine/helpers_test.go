package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rendis/flowrun/pkg/schema"
	"github.com/stretchr/testify/require"
)

const (
	typeEcho   schema.NodeType = "echo"
	typeBranch schema.NodeType = "branch"
	typeFail   schema.NodeType = "fail"
	typeBlock  schema.NodeType = "block"
)

type startExec struct{}

func (startExec) Type() schema.NodeType { return schema.NodeTypeStart }
func (startExec) Execute(_ context.Context, ec *ExecutionContext) (*ExecutionResult, error) {
	return &ExecutionResult{Outputs: ec.Runtime.IO.Inputs()}, nil
}

type endExec struct{}

func (endExec) Type() schema.NodeType { return schema.NodeTypeEnd }
func (endExec) Execute(_ context.Context, ec *ExecutionContext) (*ExecutionResult, error) {
	ec.Runtime.IO.SetOutputs(ec.Inputs)
	return &ExecutionResult{Outputs: ec.Inputs}, nil
}

// echoExec outputs its inputs after an optional data.delayMs pause.
type echoExec struct{}

func (echoExec) Type() schema.NodeType { return typeEcho }
func (echoExec) Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error) {
	if d, ok := ec.Node.Data["delayMs"].(float64); ok {
		select {
		case <-time.After(time.Duration(d) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &ExecutionResult{Outputs: ec.Inputs}, nil
}

// branchExec routes to data.branch.
type branchExec struct{}

func (branchExec) Type() schema.NodeType { return typeBranch }
func (branchExec) Execute(_ context.Context, ec *ExecutionContext) (*ExecutionResult, error) {
	b, _ := ec.Node.Data["branch"].(string)
	return &ExecutionResult{Branch: b}, nil
}

type failExec struct{}

func (failExec) Type() schema.NodeType { return typeFail }
func (failExec) Execute(context.Context, *ExecutionContext) (*ExecutionResult, error) {
	return nil, errors.New("boom")
}

// blockExec signals entered and waits for release or cancellation.
type blockExec struct {
	entered chan string
	release chan struct{}
}

func newBlockExec() *blockExec {
	return &blockExec{entered: make(chan string, 8), release: make(chan struct{})}
}

func (*blockExec) Type() schema.NodeType { return typeBlock }
func (b *blockExec) Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error) {
	b.entered <- ec.Node.ID
	select {
	case <-b.release:
		return &ExecutionResult{Outputs: map[string]any{"released": true}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type panicExec struct{}

func (panicExec) Type() schema.NodeType { return "panic" }
func (panicExec) Execute(context.Context, *ExecutionContext) (*ExecutionResult, error) {
	panic("executor exploded")
}

func newTestEngine(t *testing.T, extra []NodeExecutor, opts ...Option) *Engine {
	t.Helper()
	execs := append([]NodeExecutor{startExec{}, endExec{}, echoExec{}, branchExec{}, failExec{}}, extra...)
	ex, err := NewExecutor(execs...)
	require.NoError(t, err)
	return New(ex, opts...)
}

func parseSchema(t *testing.T, raw string) *schema.WorkflowSchema {
	t.Helper()
	var ws schema.WorkflowSchema
	require.NoError(t, json.Unmarshal([]byte(raw), &ws))
	return &ws
}

func waitTask(t *testing.T, task *Task) (map[string]any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := task.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "task did not finish")
	return out, err
}
