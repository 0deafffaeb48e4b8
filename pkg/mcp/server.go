// Package mcp exposes the task service as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowrun/internal/app"
	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/report"
	"github.com/rendis/flowrun/internal/streaming"
	"github.com/rendis/flowrun/pkg/schema"
)

// TaskService is the application surface the tools call into.
// *app.Application implements it.
type TaskService interface {
	TaskRun(ctx context.Context, ws *schema.WorkflowSchema, inputs map[string]any) (*engine.Task, error)
	TaskReport(id string) (*report.Report, error)
	TaskResult(ctx context.Context, id string, wait bool) (*app.Result, error)
	TaskCancel(id string) (bool, error)
	TaskValidate(ws *schema.WorkflowSchema) *schema.ValidationResult
	Tasks() []app.Summary
}

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Tasks   TaskService
	Hub     streaming.EventHub
	Logger  *slog.Logger
	Version string
}

// Server wraps an MCP server with flowrun tool handlers.
type Server struct {
	tasks     TaskService
	hub       streaming.EventHub
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  TaskNotifier
	mcpServer *server.MCPServer
}

// NewServer creates a Server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		tasks:    deps.Tasks,
		hub:      deps.Hub,
		logger:   logger,
		sessions: NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"flowrun",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowrun executes node-graph workflows (start, llm, condition, loop, end). Use flow.validate to check a workflow, flow.run to start it, flow.result and flow.report to follow it, flow.cancel to stop it and flow.tasks to list known tasks."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: reportTool(), Handler: s.handleReport},
		{Tool: resultTool(), Handler: s.handleResult},
		{Tool: cancelTool(), Handler: s.handleCancel},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: tasksTool(), Handler: s.handleTasks},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("flow.run",
		mcp.WithDescription("Validate and start a workflow run"),
		mcp.WithObject("schema", mcp.Required(), mcp.Description("Workflow schema: {nodes, edges}")),
		mcp.WithObject("inputs", mcp.Description("Workflow inputs, checked against the start node's outputs schema")),
		mcp.WithBoolean("wait", mcp.Description("Block until the run finishes and return its result (default: false)")),
	)
}

func reportTool() mcp.Tool {
	return mcp.NewTool("flow.report",
		mcp.WithDescription("Get the status and snapshots of every node of a task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID returned by flow.run")),
	)
}

func resultTool() mcp.Tool {
	return mcp.NewTool("flow.result",
		mcp.WithDescription("Get the status and outputs of a task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID returned by flow.run")),
		mcp.WithBoolean("wait", mcp.Description("Block until the run finishes (default: false)")),
	)
}

func cancelTool() mcp.Tool {
	return mcp.NewTool("flow.cancel",
		mcp.WithDescription("Cancel a running task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID returned by flow.run")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("flow.validate",
		mcp.WithDescription("Validate a workflow without running it"),
		mcp.WithObject("schema", mcp.Required(), mcp.Description("Workflow schema: {nodes, edges}")),
	)
}

func tasksTool() mcp.Tool {
	return mcp.NewTool("flow.tasks",
		mcp.WithDescription("List known tasks and their status"),
	)
}
