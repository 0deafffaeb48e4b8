// Package iocenter holds the workflow-level inputs and outputs of a run.
package iocenter

import (
	"sync"

	"github.com/rendis/flowrun/internal/expressions"
)

// Data is the exported IO record.
type Data struct {
	Inputs  map[string]any `json:"inputs"`
	Outputs map[string]any `json:"outputs"`
}

// IOCenter stores the run's inputs (fixed at Init) and outputs (written by
// end nodes).
type IOCenter struct {
	mu      sync.RWMutex
	inputs  map[string]any
	outputs map[string]any
}

// New returns an empty IOCenter.
func New() *IOCenter {
	return &IOCenter{inputs: map[string]any{}, outputs: map[string]any{}}
}

// Init records the workflow inputs and clears outputs.
func (c *IOCenter) Init(inputs map[string]any) {
	cp := expressions.DeepCopyMap(inputs)
	if cp == nil {
		cp = map[string]any{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = cp
	c.outputs = map[string]any{}
}

// Inputs returns a copy of the workflow inputs.
func (c *IOCenter) Inputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expressions.DeepCopyMap(c.inputs)
}

// SetOutputs replaces the workflow outputs. The last writer wins.
func (c *IOCenter) SetOutputs(outputs map[string]any) {
	cp := expressions.DeepCopyMap(outputs)
	if cp == nil {
		cp = map[string]any{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs = cp
}

// Outputs returns a copy of the workflow outputs.
func (c *IOCenter) Outputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expressions.DeepCopyMap(c.outputs)
}

// Export returns both maps.
func (c *IOCenter) Export() Data {
	return Data{Inputs: c.Inputs(), Outputs: c.Outputs()}
}

// Dispose clears both maps.
func (c *IOCenter) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs = map[string]any{}
	c.outputs = map[string]any{}
}
