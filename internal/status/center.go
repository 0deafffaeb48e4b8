package status

import (
	"sync"

	"github.com/rendis/flowrun/pkg/schema"
)

// Center owns the workflow status and one status per observed node.
type Center struct {
	mu       sync.RWMutex
	workflow *Status
	nodes    map[string]*Status
	order    []string
	hooks    []TransitionHook
}

// NewCenter returns an initialized Center.
func NewCenter() *Center {
	c := &Center{}
	c.Init()
	return c
}

// Init resets every status to idle. Registered hooks are kept.
func (c *Center) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflow = newStatus("", c.snapshotHooks)
	c.nodes = make(map[string]*Status)
	c.order = nil
}

// OnTransition registers a hook called after every successful transition.
func (c *Center) OnTransition(hook TransitionHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *Center) snapshotHooks() []TransitionHook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hooks
}

// Workflow returns the workflow-level status.
func (c *Center) Workflow() *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workflow
}

// Node returns the status of nodeID, creating an idle one on first use.
func (c *Center) Node(nodeID string) *Status {
	c.mu.RLock()
	s, ok := c.nodes[nodeID]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.nodes[nodeID]; ok {
		return s
	}
	s = newStatus(nodeID, c.snapshotHooks)
	c.nodes[nodeID] = s
	c.order = append(c.order, nodeID)
	return s
}

// NodeIDs returns every observed node ID in first-seen order.
func (c *Center) NodeIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// GetStatusNodeIDs returns the IDs of nodes currently in st.
func (c *Center) GetStatusNodeIDs(st schema.Status) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, id := range c.order {
		if c.nodes[id].Status() == st {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExportNodes returns the exported status of every observed node.
func (c *Center) ExportNodes() map[string]Data {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Data, len(c.nodes))
	for id, s := range c.nodes {
		out[id] = s.Export()
	}
	return out
}

// Dispose drops node statuses.
func (c *Center) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = make(map[string]*Status)
	c.order = nil
}
