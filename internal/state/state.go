// Package state holds the per-run derived data of a workflow: node outputs,
// the executed set and reference resolution.
package state

import (
	"sync"

	"github.com/rendis/flowrun/internal/document"
	"github.com/rendis/flowrun/internal/expressions"
	"github.com/rendis/flowrun/internal/variable"
)

// State is owned by one run or one loop iteration.
type State struct {
	vars *variable.Store

	mu       sync.Mutex
	outputs  map[string]map[string]any
	executed map[string]bool
	skipped  map[string]bool
	claimed  map[string]bool
}

// New returns an empty State resolving variables through vars.
func New(vars *variable.Store) *State {
	s := &State{vars: vars}
	s.Init()
	return s
}

// Init clears all derived data.
func (s *State) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = make(map[string]map[string]any)
	s.executed = make(map[string]bool)
	s.skipped = make(map[string]bool)
	s.claimed = make(map[string]bool)
}

// Variables returns the store this State resolves through.
func (s *State) Variables() *variable.Store {
	return s.vars
}

// GetNodeInputs resolves every declared input binding of node. Bindings
// that cannot be resolved are omitted.
func (s *State) GetNodeInputs(node *document.Node) map[string]any {
	inputs := make(map[string]any, len(node.Declare.InputsValues))
	for key, fv := range node.Declare.InputsValues {
		parsed, err := s.ParseValue(fv)
		if err != nil || parsed == nil {
			continue
		}
		inputs[key] = parsed.Value
	}
	return inputs
}

// SetNodeOutputs records node's outputs and mirrors each key into the
// variable store so nested scopes can reference them.
func (s *State) SetNodeOutputs(node *document.Node, outputs map[string]any) {
	cp := expressions.DeepCopyMap(outputs)
	if cp == nil {
		cp = map[string]any{}
	}

	s.mu.Lock()
	s.outputs[node.ID] = cp
	s.mu.Unlock()

	for key, value := range cp {
		v := variable.Variable{NodeID: node.ID, Key: key, Value: value}
		if decl := node.Declare.Outputs.Property(key); decl != nil && decl.Type != "" {
			v.Type = decl.Type
			if decl.Items != nil {
				v.ItemsType = decl.Items.Type
			}
		}
		s.vars.SetVariable(v)
	}
}

// GetNodeOutputs returns the recorded outputs of nodeID.
func (s *State) GetNodeOutputs(nodeID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[nodeID]
	return out, ok
}

// AddExecutedNode marks node as completed.
func (s *State) AddExecutedNode(node *document.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed[node.ID] = true
	s.claimed[node.ID] = true
}

// IsExecutedNode reports whether node completed or was skipped.
func (s *State) IsExecutedNode(node *document.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed[node.ID]
}

// IsSkippedNode reports whether node was skipped by branch pruning.
func (s *State) IsSkippedNode(node *document.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped[node.ID]
}

// ExecutedNodeIDs returns the IDs in the executed set.
func (s *State) ExecutedNodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.executed))
	for id := range s.executed {
		ids = append(ids, id)
	}
	return ids
}

// Claim reports whether node is ready (every predecessor executed) and, if
// so, reserves it for the caller. Exactly one caller wins per node.
func (s *State) Claim(node *document.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[node.ID] || !s.readyLocked(node) {
		return false
	}
	s.claimed[node.ID] = true
	return true
}

func (s *State) readyLocked(node *document.Node) bool {
	for _, p := range node.Prev {
		if !s.executed[p.ID] {
			return false
		}
	}
	return true
}

// Prune handles node, a successor of from that sits behind a branch from
// did not choose. node is skipped when from is its only live predecessor;
// the skip then propagates to every successor whose predecessors are all
// skipped. A node that keeps a live predecessor is left to run: it is
// returned in ready once all its predecessors have executed. from must
// already be executed.
func (s *State) Prune(from, node *document.Node) (ready, skipped []*document.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[node.ID] {
		return nil, nil
	}
	if !s.deadLocked(node, from) {
		if s.readyLocked(node) {
			ready = append(ready, node)
		}
		return ready, nil
	}
	s.pruneLocked(node, &ready, &skipped)
	return ready, skipped
}

// deadLocked reports whether every predecessor of node other than except
// was skipped.
func (s *State) deadLocked(node, except *document.Node) bool {
	for _, p := range node.Prev {
		if p != except && !s.skipped[p.ID] {
			return false
		}
	}
	return true
}

func (s *State) pruneLocked(node *document.Node, ready, skipped *[]*document.Node) {
	s.claimed[node.ID] = true
	s.executed[node.ID] = true
	s.skipped[node.ID] = true
	*skipped = append(*skipped, node)

	for _, next := range node.Next {
		if s.claimed[next.ID] {
			continue
		}
		if s.deadLocked(next, nil) {
			s.pruneLocked(next, ready, skipped)
			continue
		}
		if s.readyLocked(next) {
			*ready = append(*ready, next)
		}
	}
}

// SkippedNodeIDs returns the IDs pruned so far.
func (s *State) SkippedNodeIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.skipped))
	for id := range s.skipped {
		ids = append(ids, id)
	}
	return ids
}
