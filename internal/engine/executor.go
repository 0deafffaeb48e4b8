package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rendis/flowrun/internal/document"
	"github.com/rendis/flowrun/pkg/schema"
)

// NodeExecutor runs nodes of one type.
type NodeExecutor interface {
	Type() schema.NodeType
	Execute(ctx context.Context, ec *ExecutionContext) (*ExecutionResult, error)
}

// Container runs a node inside a given runtime. Container nodes (loop) use
// it to drive their body.
type Container interface {
	ExecuteNode(ctx context.Context, rt *Runtime, node *document.Node) error
	Emit(ctx context.Context, rt *Runtime, nodeID, eventType string, payload map[string]any)
}

// ExecutionContext is what a NodeExecutor receives.
type ExecutionContext struct {
	Node      *document.Node
	Inputs    map[string]any
	Runtime   *Runtime
	Container Container
}

// ExecutionResult is what a NodeExecutor returns. A non-empty Branch
// restricts the next nodes to those wired to the output port of that key.
type ExecutionResult struct {
	Outputs map[string]any
	Branch  string
}

// Executor dispatches a node to the executor registered for its type.
type Executor struct {
	mu        sync.RWMutex
	executors map[schema.NodeType]NodeExecutor
}

// NewExecutor creates an Executor with the given executors registered.
func NewExecutor(executors ...NodeExecutor) (*Executor, error) {
	e := &Executor{executors: make(map[schema.NodeType]NodeExecutor)}
	for _, ex := range executors {
		if err := e.Register(ex); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register adds an executor. Returns error on duplicate type.
func (e *Executor) Register(ex NodeExecutor) error {
	if ex == nil {
		return schema.NewError(schema.ErrCodeValidation, "node executor is nil")
	}
	typ := ex.Type()
	if typ == "" {
		return schema.NewError(schema.ErrCodeValidation, "node executor type is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.executors[typ]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "executor for node type %q already registered", typ)
	}
	e.executors[typ] = ex
	return nil
}

// Get retrieves the executor for a node type.
func (e *Executor) Get(typ schema.NodeType) (NodeExecutor, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ex, ok := e.executors[typ]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecutorNotFound, "no executor registered for node type %q", typ)
	}
	return ex, nil
}

// Has checks if a node type has an executor.
func (e *Executor) Has(typ schema.NodeType) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.executors[typ]
	return ok
}

// Types returns the registered node types, sorted.
func (e *Executor) Types() []schema.NodeType {
	e.mu.RLock()
	defer e.mu.RUnlock()

	types := make([]schema.NodeType, 0, len(e.executors))
	for t := range e.executors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Execute runs ec.Node with its registered executor. A panicking executor
// is reported as an error.
func (e *Executor) Execute(ctx context.Context, ec *ExecutionContext) (result *ExecutionResult, err error) {
	ex, err := e.Get(ec.Node.Type)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = schema.NewErrorf(schema.ErrCodeExecution, "executor panic: %v", r).WithNode(ec.Node.ID)
		}
	}()

	result, err = ex.Execute(ctx, ec)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &ExecutionResult{}
	}
	if result.Outputs == nil {
		result.Outputs = map[string]any{}
	}
	return result, nil
}
