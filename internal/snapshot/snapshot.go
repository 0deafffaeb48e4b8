// Package snapshot keeps the append-only log of node execution attempts.
package snapshot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/flowrun/internal/expressions"
)

// Data is the payload of a snapshot. Fields set to their zero value are
// left untouched by AddData.
type Data struct {
	NodeID   string         `json:"nodeID"`
	Inputs   map[string]any `json:"inputs"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	NodeData map[string]any `json:"data,omitempty"`
	Branch   string         `json:"branch,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Snapshot records one execution attempt of one node.
type Snapshot struct {
	mu        sync.RWMutex
	id        string
	createdAt time.Time
	data      Data
}

// ID returns the generated snapshot ID.
func (s *Snapshot) ID() string {
	return s.id
}

// NodeID returns the node this attempt belongs to.
func (s *Snapshot) NodeID() string {
	return s.data.NodeID
}

// AddData merges the non-empty fields of d into the snapshot.
func (s *Snapshot) AddData(d Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Inputs != nil {
		s.data.Inputs = expressions.DeepCopyMap(d.Inputs)
	}
	if d.Outputs != nil {
		s.data.Outputs = expressions.DeepCopyMap(d.Outputs)
	}
	if d.NodeData != nil {
		s.data.NodeData = d.NodeData
	}
	if d.Branch != "" {
		s.data.Branch = d.Branch
	}
	if d.Error != "" {
		s.data.Error = d.Error
	}
}

// Export is the JSON form of a snapshot.
type Export struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Data
}

// Export returns a copy of the snapshot's contents.
func (s *Snapshot) Export() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.data
	d.Inputs = expressions.DeepCopyMap(s.data.Inputs)
	d.Outputs = expressions.DeepCopyMap(s.data.Outputs)
	return Export{ID: s.id, CreatedAt: s.createdAt.UnixMilli(), Data: d}
}

// Center is the append-only snapshot log of one workflow run, shared by
// every loop iteration.
type Center struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
}

// NewCenter returns an empty Center.
func NewCenter() *Center {
	return &Center{}
}

// Init clears the log. Used only before a run starts.
func (c *Center) Init() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = nil
}

// Create appends a snapshot initialized with d.
func (c *Center) Create(d Data) *Snapshot {
	s := &Snapshot{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		data: Data{
			NodeID:   d.NodeID,
			Inputs:   expressions.DeepCopyMap(d.Inputs),
			NodeData: d.NodeData,
		},
	}
	if s.data.Inputs == nil {
		s.data.Inputs = map[string]any{}
	}
	c.mu.Lock()
	c.snapshots = append(c.snapshots, s)
	c.mu.Unlock()
	return s
}

// ExportAll returns every snapshot in creation order.
func (c *Center) ExportAll() []Export {
	c.mu.RLock()
	list := append([]*Snapshot(nil), c.snapshots...)
	c.mu.RUnlock()

	out := make([]Export, len(list))
	for i, s := range list {
		out[i] = s.Export()
	}
	return out
}

// Export groups every snapshot by node ID, keeping creation order within
// each group.
func (c *Center) Export() map[string][]Export {
	out := make(map[string][]Export)
	for _, e := range c.ExportAll() {
		out[e.NodeID] = append(out[e.NodeID], e)
	}
	return out
}

// Dispose is a no-op: the log outlives the run so it can still be reported.
func (c *Center) Dispose() {}
