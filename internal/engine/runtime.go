package engine

import (
	"github.com/rendis/flowrun/internal/document"
	"github.com/rendis/flowrun/internal/iocenter"
	"github.com/rendis/flowrun/internal/report"
	"github.com/rendis/flowrun/internal/snapshot"
	"github.com/rendis/flowrun/internal/state"
	"github.com/rendis/flowrun/internal/status"
	"github.com/rendis/flowrun/internal/variable"
	"github.com/rendis/flowrun/pkg/schema"
)

// Runtime bundles everything one workflow run needs. A sub-runtime (one
// per loop iteration) gets its own Variables and State and shares the rest
// with its parent.
type Runtime struct {
	ID        string
	Document  *document.Document
	Variables *variable.Store
	State     *state.State
	IO        *iocenter.IOCenter
	Snapshots *snapshot.Center
	Statuses  *status.Center
	Reporter  *report.Reporter

	parent *Runtime
}

// NewRuntime returns an uninitialized root runtime tagged with id.
func NewRuntime(id string) *Runtime {
	vars := variable.NewStore()
	io := iocenter.New()
	statuses := status.NewCenter()
	snapshots := snapshot.NewCenter()
	return &Runtime{
		ID:        id,
		Document:  document.New(),
		Variables: vars,
		State:     state.New(vars),
		IO:        io,
		Snapshots: snapshots,
		Statuses:  statuses,
		Reporter:  report.New(id, statuses, snapshots, io),
	}
}

// Init parses the schema, records the inputs and seeds them as variables
// owned by the start node.
func (r *Runtime) Init(params InvokeParams) error {
	if err := r.Document.Init(params.Schema); err != nil {
		return err
	}
	start, err := r.Document.Start()
	if err != nil {
		return err
	}

	r.IO.Init(params.Inputs)
	for key, value := range r.IO.Inputs() {
		v := variable.Variable{NodeID: start.ID, Key: key, Value: value}
		if decl := start.Declare.Outputs.Property(key); decl != nil {
			v.Type = decl.Type
			if decl.Items != nil {
				v.ItemsType = decl.Items.Type
			}
		}
		r.Variables.SetVariable(v)
	}
	return nil
}

// Sub returns a child runtime whose variable scope encloses r's.
func (r *Runtime) Sub() *Runtime {
	vars := variable.NewStore()
	vars.SetParent(r.Variables)
	return &Runtime{
		ID:        r.ID,
		Document:  r.Document,
		Variables: vars,
		State:     state.New(vars),
		IO:        r.IO,
		Snapshots: r.Snapshots,
		Statuses:  r.Statuses,
		Reporter:  r.Reporter,
		parent:    r,
	}
}

// Parent returns the enclosing runtime, nil for the root.
func (r *Runtime) Parent() *Runtime {
	return r.parent
}

// Terminated reports whether the workflow reached a terminal status.
func (r *Runtime) Terminated() bool {
	return r.Statuses.Workflow().Terminated()
}

// WorkflowStatus returns the current workflow status.
func (r *Runtime) WorkflowStatus() schema.Status {
	return r.Statuses.Workflow().Status()
}

// Dispose releases the runtime's own scope. Shared centers are left intact
// so the run can still be reported.
func (r *Runtime) Dispose() {
	r.Variables.Dispose()
	r.State.Init()
}
