// Package variable implements the scoped variable store used for workflow
// inputs, node outputs and loop-local bindings.
package variable

import (
	"sync"

	"github.com/rendis/flowrun/internal/expressions"
	"github.com/rendis/flowrun/pkg/schema"
)

// Variable is one (nodeID, key) binding with its type metadata.
type Variable struct {
	NodeID    string              `json:"nodeID"`
	Key       string              `json:"key"`
	Value     any                 `json:"value"`
	Type      schema.VariableType `json:"type"`
	ItemsType schema.VariableType `json:"itemsType,omitempty"`
}

type varKey struct {
	nodeID string
	key    string
}

// Store is one scope frame plus the chain of enclosing frames, innermost
// first. Writes only touch the local frame.
type Store struct {
	mu    sync.RWMutex
	local map[varKey]Variable
	chain []*Store
}

// NewStore returns an empty root store.
func NewStore() *Store {
	s := &Store{}
	s.Init()
	return s
}

// Init resets the local frame. The scope chain is kept.
func (s *Store) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = make(map[varKey]Variable)
}

// SetParent makes parent (and its own chain) the enclosing scope of s.
func (s *Store) SetParent(parent *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parent == nil {
		s.chain = nil
		return
	}
	parent.mu.RLock()
	chain := make([]*Store, 0, len(parent.chain)+1)
	chain = append(chain, parent)
	chain = append(chain, parent.chain...)
	parent.mu.RUnlock()
	s.chain = chain
}

// Depth is the number of enclosing scopes.
func (s *Store) Depth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chain)
}

// SetVariable creates or replaces a binding in the local frame. Arrays
// without an element type default to string elements.
func (s *Store) SetVariable(v Variable) {
	if v.Type == "" {
		v.Type, v.ItemsType = schema.InferType(v.Value)
	}
	if v.Type == schema.TypeArray && v.ItemsType == "" {
		_, v.ItemsType = schema.InferType(v.Value)
		if v.ItemsType == "" {
			v.ItemsType = schema.TypeString
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[varKey{v.NodeID, v.Key}] = v
}

// HasVariable reports whether the binding exists anywhere in the chain.
func (s *Store) HasVariable(key, nodeID string) bool {
	_, ok := s.GetVariable(key, nodeID)
	return ok
}

// GetVariable looks the binding up locally, then outward along the chain.
func (s *Store) GetVariable(key, nodeID string) (Variable, bool) {
	k := varKey{nodeID, key}
	if v, ok := s.lookupLocal(k); ok {
		return v, true
	}
	s.mu.RLock()
	chain := s.chain
	s.mu.RUnlock()
	for _, scope := range chain {
		if v, ok := scope.lookupLocal(k); ok {
			return v, true
		}
	}
	return Variable{}, false
}

func (s *Store) lookupLocal(k varKey) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.local[k]
	return v, ok
}

// GetValue reads the binding's value, walking path into nested objects
// and arrays.
func (s *Store) GetValue(nodeID, key string, path []string) (any, bool) {
	v, ok := s.GetVariable(key, nodeID)
	if !ok {
		return nil, false
	}
	if len(path) == 0 {
		return v.Value, true
	}
	out, err := expressions.GetPath(v.Value, path)
	if err != nil {
		return nil, false
	}
	return out, true
}

// SetValue writes value at path inside an existing binding, keeping its
// type metadata. A binding owned by an enclosing scope is copied into the
// local frame first.
func (s *Store) SetValue(nodeID, key string, path []string, value any) error {
	v, ok := s.GetVariable(key, nodeID)
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "variable %s.%s not found", nodeID, key)
	}
	updated, err := expressions.SetPath(v.Value, path, value)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeExecution, "set %s.%s: %s", nodeID, key, err.Error()).
			WithCause(err)
	}
	v.Value = updated

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[varKey{nodeID, key}] = v
	return nil
}

// Local returns a copy of the bindings in this frame only.
func (s *Store) Local() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Variable, 0, len(s.local))
	for _, v := range s.local {
		out = append(out, v)
	}
	return out
}

// Dispose drops the local frame and detaches the chain.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = make(map[varKey]Variable)
	s.chain = nil
}
