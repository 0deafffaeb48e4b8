// Package engine walks a workflow graph from its start node, dispatching
// each node to the executor registered for its type.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/flowrun/internal/document"
	"github.com/rendis/flowrun/internal/logging"
	"github.com/rendis/flowrun/internal/snapshot"
	"github.com/rendis/flowrun/internal/streaming"
	"github.com/rendis/flowrun/pkg/schema"
	"golang.org/x/sync/errgroup"
)

// InvokeParams is the input of one workflow run.
type InvokeParams struct {
	Schema *schema.WorkflowSchema `json:"schema"`
	Inputs map[string]any         `json:"inputs"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithEventHub publishes lifecycle events to hub.
func WithEventHub(hub streaming.EventHub) Option {
	return func(e *Engine) { e.hub = hub }
}

// WithWorkerPool bounds concurrent runs with pool.
func WithWorkerPool(pool *WorkerPool) Option {
	return func(e *Engine) { e.pool = pool }
}

// Engine runs workflows. One Engine serves any number of concurrent tasks.
type Engine struct {
	executor *Executor
	logger   *slog.Logger
	hub      streaming.EventHub
	pool     *WorkerPool
}

// New creates an Engine dispatching through executor.
func New(executor *Executor, opts ...Option) *Engine {
	e := &Engine{
		executor: executor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executor returns the dispatch registry.
func (e *Engine) Executor() *Executor {
	return e.executor
}

// Invoke starts a run and returns immediately. Errors building the run
// (bad schema, no start node) are returned synchronously.
func (e *Engine) Invoke(ctx context.Context, params InvokeParams) (*Task, error) {
	if params.Schema == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow schema is required")
	}

	id := uuid.New().String()
	rt := NewRuntime(id)
	rt.Statuses.OnTransition(e.publishTransition(id))
	if err := rt.Init(params); err != nil {
		return nil, err
	}

	// The run outlives the caller's request; only Task.Cancel stops it.
	runCtx, cancel := context.WithCancel(logging.WithTaskID(context.WithoutCancel(ctx), id))
	task := newTask(rt, cancel)
	rt.Statuses.Workflow().Process()

	run := func(ctx context.Context) error {
		outputs, err := e.process(ctx, rt)
		task.finish(outputs, err)
		return err
	}

	if e.pool == nil {
		go run(runCtx)
		return task, nil
	}

	go func() {
		if err := e.pool.Submit(runCtx, run); err != nil {
			if rt.Terminated() {
				task.finish(rt.IO.Outputs(), nil)
				return
			}
			rt.Statuses.Workflow().Fail()
			task.finish(nil, schema.NewError(schema.ErrCodeExecution, "workflow was not scheduled").WithCause(err))
		}
	}()
	return task, nil
}

// process runs the start node and everything it transitively triggers.
func (e *Engine) process(ctx context.Context, rt *Runtime) (outputs map[string]any, err error) {
	wf := rt.Statuses.Workflow()
	log := logging.LogWith(ctx, e.logger)

	defer func() {
		if r := recover(); r != nil {
			err = schema.NewErrorf(schema.ErrCodeExecution, "workflow panic: %v", r)
		}
		if err != nil {
			wf.Fail()
			log.Error("workflow failed", slog.String("error", err.Error()))
			outputs = nil
		}
	}()

	start, err := rt.Document.Start()
	if err != nil {
		return nil, err
	}
	if err := e.ExecuteNode(ctx, rt, start); err != nil {
		return nil, err
	}

	if !rt.Terminated() {
		wf.Success()
		log.Debug("workflow succeeded", slog.Duration("time_cost", wf.TimeCost()))
	}
	return rt.IO.Outputs(), nil
}

// ExecuteNode runs node in rt once all its predecessors have executed, then
// advances to its successors. A node failure is recorded on the node and
// does not abort the rest of the graph. Only configuration errors are
// returned.
func (e *Engine) ExecuteNode(ctx context.Context, rt *Runtime, node *document.Node) error {
	if !rt.State.Claim(node) {
		return nil
	}
	if rt.Terminated() {
		return nil
	}

	ctx = logging.WithNode(ctx, node.ID, string(node.Type))
	log := logging.LogWith(ctx, e.logger)

	st := rt.Statuses.Node(node.ID)
	st.Process()
	inputs := rt.State.GetNodeInputs(node)
	snap := rt.Snapshots.Create(snapshot.Data{
		NodeID:   node.ID,
		Inputs:   inputs,
		NodeData: node.Data,
	})
	log.Debug("node processing")

	result, err := e.executor.Execute(ctx, &ExecutionContext{
		Node:      node,
		Inputs:    inputs,
		Runtime:   rt,
		Container: e,
	})

	// Cancelled while the executor was running: discard the result.
	if rt.Terminated() {
		return nil
	}

	if err != nil {
		st.Fail()
		snap.AddData(snapshot.Data{Error: err.Error()})
		log.Warn("node failed", slog.String("error", err.Error()))
		if isConfigError(err) {
			return fmt.Errorf("node %s: %w", node.ID, err)
		}
		return nil
	}

	snap.AddData(snapshot.Data{Outputs: result.Outputs, Branch: result.Branch})
	rt.State.SetNodeOutputs(node, result.Outputs)
	rt.State.AddExecutedNode(node)
	st.Success()
	log.Debug("node succeeded", slog.String("branch", result.Branch))

	return e.executeNext(ctx, rt, node, result.Branch)
}

// executeNext fans out to every next node and waits for all of them.
func (e *Engine) executeNext(ctx context.Context, rt *Runtime, node *document.Node, branch string) error {
	if node.Type == schema.NodeTypeEnd {
		return nil
	}
	next := e.nextNodes(ctx, rt, node, branch)
	if len(next) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, n := range next {
		g.Go(func() error {
			return e.ExecuteNode(ctx, rt, n)
		})
	}
	return g.Wait()
}

// nextNodes returns the successors to attempt. With a branch, only the
// nodes wired to that output port are followed; the others are pruned so
// joins behind them do not wait forever.
func (e *Engine) nextNodes(ctx context.Context, rt *Runtime, node *document.Node, branch string) []*document.Node {
	if branch == "" {
		return node.Next
	}

	chosen := node.NextByPort(branch)
	keep := make(map[*document.Node]bool, len(chosen))
	for _, n := range chosen {
		keep[n] = true
	}

	next := append([]*document.Node(nil), chosen...)
	for _, n := range node.Next {
		if keep[n] {
			continue
		}
		ready, skipped := rt.State.Prune(node, n)
		next = append(next, ready...)
		for _, s := range skipped {
			e.publish(ctx, rt.ID, s.ID, schema.EventNodeSkipped, nil)
		}
	}
	return next
}

// Emit publishes a custom lifecycle event for nodeID. Container executors
// use it for per-iteration events.
func (e *Engine) Emit(ctx context.Context, rt *Runtime, nodeID, eventType string, payload map[string]any) {
	e.publish(ctx, rt.ID, nodeID, eventType, payload)
}

func (e *Engine) publish(ctx context.Context, taskID, nodeID, eventType string, payload map[string]any) {
	if e.hub == nil {
		return
	}
	ev := streaming.StreamEvent{
		TaskID:    taskID,
		NodeID:    nodeID,
		EventType: eventType,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		ev.Payload = payload
	}
	if err := e.hub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn("event publish failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

func (e *Engine) publishTransition(taskID string) func(nodeID string, from, to schema.Status) {
	return func(nodeID string, from, to schema.Status) {
		typ := transitionEvent(nodeID == "", to)
		if typ == "" {
			return
		}
		e.publish(context.Background(), taskID, nodeID, typ, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
	}
}

func transitionEvent(workflow bool, to schema.Status) string {
	switch to {
	case schema.StatusProcessing:
		if workflow {
			return schema.EventWorkflowProcessing
		}
		return schema.EventNodeProcessing
	case schema.StatusSucceeded:
		if workflow {
			return schema.EventWorkflowSucceeded
		}
		return schema.EventNodeSucceeded
	case schema.StatusFailed:
		if workflow {
			return schema.EventWorkflowFailed
		}
		return schema.EventNodeFailed
	case schema.StatusCancelled:
		if workflow {
			return schema.EventWorkflowCancelled
		}
		return schema.EventNodeCancelled
	}
	return ""
}

// isConfigError reports errors that indicate a broken workflow definition
// rather than a failed node run.
func isConfigError(err error) bool {
	switch schema.ErrorCode(err) {
	case schema.ErrCodeExecutorNotFound, schema.ErrCodeInvalidRef, schema.ErrCodeLoopInput, schema.ErrCodeValidation:
		return true
	}
	return false
}
