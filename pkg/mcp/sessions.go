package mcp

import "sync"

// SessionRegistry maps task IDs to the MCP session that started them.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string // taskID → sessionID
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

// Register associates a task with a session.
func (r *SessionRegistry) Register(taskID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[taskID] = sessionID
}

// SessionFor returns the session that owns the task, if still connected.
func (r *SessionRegistry) SessionFor(taskID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[taskID]
	return sid, ok
}

// Forget drops the mapping of a single task.
func (r *SessionRegistry) Forget(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, taskID)
}

// Remove deletes every task mapped to the given session.
// Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tid, sid := range r.sessions {
		if sid == sessionID {
			delete(r.sessions, tid)
		}
	}
}

// Len returns the number of mapped tasks.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
