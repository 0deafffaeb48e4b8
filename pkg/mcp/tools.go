package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/streaming"
	"github.com/rendis/flowrun/pkg/schema"
)

// handleRun validates and starts a workflow.
func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, err := decodeSchema(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	inputs := mcp.ParseStringMap(req, "inputs", nil)

	task, err := s.tasks.TaskRun(ctx, ws, inputs)
	if err != nil {
		return toolError("run failed", err), nil
	}

	s.captureSession(ctx, task.ID())
	s.forward(task)

	if !req.GetBool("wait", false) {
		return marshalResult(map[string]any{
			"task_id": task.ID(),
			"status":  task.Status(),
		})
	}

	res, err := s.tasks.TaskResult(ctx, task.ID(), true)
	if err != nil {
		return toolError("wait failed", err), nil
	}
	return marshalResult(res)
}

// handleReport returns the node-level report of a task.
func (s *Server) handleReport(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	rep, err := s.tasks.TaskReport(taskID)
	if err != nil {
		return toolError("report failed", err), nil
	}
	return marshalResult(rep)
}

// handleResult returns status and outputs, optionally waiting for the end.
func (s *Server) handleResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	res, err := s.tasks.TaskResult(ctx, taskID, req.GetBool("wait", false))
	if err != nil {
		return toolError("result failed", err), nil
	}
	return marshalResult(res)
}

// handleCancel cancels a task.
func (s *Server) handleCancel(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	cancelled, err := s.tasks.TaskCancel(taskID)
	if err != nil {
		return toolError("cancel failed", err), nil
	}
	return marshalResult(map[string]any{
		"task_id":   taskID,
		"cancelled": cancelled,
	})
}

// handleValidate runs validation only.
func (s *Server) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, err := decodeSchema(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := s.tasks.TaskValidate(ws)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handleTasks lists registered tasks.
func (s *Server) handleTasks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"tasks": s.tasks.Tasks()})
}

// --- Internal helpers ---

// decodeSchema reads the "schema" argument, given either as an object or
// as a JSON string.
func decodeSchema(req mcp.CallToolRequest) (*schema.WorkflowSchema, error) {
	raw, ok := req.GetArguments()["schema"]
	if !ok || raw == nil {
		return nil, errors.New("schema is required")
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("invalid schema: %v", err)
		}
		data = b
	}

	var ws schema.WorkflowSchema
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("invalid schema: %v", err)
	}
	return &ws, nil
}

// forward relays the task's lifecycle events to the notifier until the
// task finishes, then sends a final task.finished message.
func (s *Server) forward(task *engine.Task) {
	if s.hub == nil || s.notifier == nil {
		return
	}
	subCtx, stop := context.WithCancel(context.Background())
	events, unsubscribe, err := s.hub.Subscribe(subCtx, streaming.EventFilter{TaskID: task.ID()})
	if err != nil {
		stop()
		s.logger.Warn("event subscription failed", slog.String("task_id", task.ID()), slog.String("error", err.Error()))
		return
	}

	go func() {
		defer stop()
		defer s.sessions.Forget(task.ID())
		defer unsubscribe()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.notify(task.ID(), eventPayload(ev))
			case <-task.Done():
				s.notify(task.ID(), map[string]any{
					"task_id":    task.ID(),
					"event_type": "task.finished",
					"status":     string(task.Status()),
				})
				return
			}
		}
	}()
}

func (s *Server) notify(taskID string, payload map[string]any) {
	if err := s.notifier.Notify(context.Background(), taskID, payload); err != nil {
		s.logger.Debug("task notification failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
	}
}

func eventPayload(ev streaming.StreamEvent) map[string]any {
	p := map[string]any{
		"task_id":    ev.TaskID,
		"event_type": ev.EventType,
		"timestamp":  ev.Timestamp,
	}
	if ev.NodeID != "" {
		p["node_id"] = ev.NodeID
	}
	if ev.Payload != nil {
		p["payload"] = ev.Payload
	}
	return p
}

// captureSession maps the task to the calling MCP session for notifications.
func (s *Server) captureSession(ctx context.Context, taskID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(taskID, session.SessionID())
	}
}

// toolError renders err as a tool error, keeping the FlowError code up front.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", prefix, fe.Error()))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: [%s] %v", prefix, schema.ErrorCode(err), err))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
