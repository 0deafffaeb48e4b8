package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("task-1", "session-abc")
	sid, ok := r.SessionFor("task-1")
	assert.True(t, ok)
	assert.Equal(t, "session-abc", sid)

	_, ok = r.SessionFor("unknown")
	assert.False(t, ok)
}

func TestSessionRegistry_Forget(t *testing.T) {
	r := NewSessionRegistry()
	r.Register("task-1", "session-abc")
	r.Register("task-2", "session-abc")

	r.Forget("task-1")

	_, ok := r.SessionFor("task-1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestSessionRegistry_Remove(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("task-1", "session-abc")
	r.Register("task-2", "session-abc")
	r.Register("task-3", "session-xyz")

	r.Remove("session-abc")

	_, ok := r.SessionFor("task-1")
	assert.False(t, ok, "task-1 should be removed")
	_, ok = r.SessionFor("task-2")
	assert.False(t, ok, "task-2 should be removed")

	sid, ok := r.SessionFor("task-3")
	assert.True(t, ok, "task-3 should still exist")
	assert.Equal(t, "session-xyz", sid)
}

func TestMCPNotifier_NoSessionIsNoop(t *testing.T) {
	n := NewMCPNotifier(server.NewMCPServer("t", "0"), NewSessionRegistry())
	assert.NoError(t, n.Notify(context.Background(), "task-1", map[string]any{"x": 1}))
}

func TestMCPNotifier_DropsUnknownSession(t *testing.T) {
	sessions := NewSessionRegistry()
	sessions.Register("task-1", "gone")
	n := NewMCPNotifier(server.NewMCPServer("t", "0"), sessions)

	require.NoError(t, n.Notify(context.Background(), "task-1", map[string]any{"x": 1}))
	assert.Zero(t, sessions.Len())
}
