package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	s := NewServer(ServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.notifier)
	assert.Same(t, s.mcpServer, s.MCPServer())
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolName    string
		description string
	}{
		{"flow.run", "Validate and start a workflow run"},
		{"flow.report", "Get the status and snapshots of every node of a task"},
		{"flow.result", "Get the status and outputs of a task"},
		{"flow.cancel", "Cancel a running task"},
		{"flow.validate", "Validate a workflow without running it"},
		{"flow.tasks", "List known tasks and their status"},
	}

	s := NewServer(ServerDeps{})
	require.Len(t, s.mcpServer.ListTools(), len(tests))

	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
