package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rendis/flowrun/internal/report"
	"github.com/rendis/flowrun/pkg/schema"
)

// Task is the handle of one in-flight or finished workflow run.
type Task struct {
	rt     *Runtime
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	status     schema.Status
	finished   bool
	finishedAt time.Time
	outputs    map[string]any
	err        error
	onComplete []func(outputs map[string]any)
	onError    []func(err error)
}

func newTask(rt *Runtime, cancel context.CancelFunc) *Task {
	return &Task{
		rt:     rt,
		cancel: cancel,
		done:   make(chan struct{}),
		status: schema.StatusProcessing,
	}
}

// ID returns the task ID.
func (t *Task) ID() string {
	return t.rt.ID
}

// Status returns the cached workflow status. It changes when the run
// finishes or the task is cancelled.
func (t *Task) Status() schema.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Runtime gives read access to the run's centers.
func (t *Task) Runtime() *Runtime {
	return t.rt
}

// Report exports the current report. Safe to call while the run is going.
func (t *Task) Report() *report.Report {
	return t.rt.Reporter.Export()
}

// Done is closed once the run has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// FinishedAt returns when the run finished. ok is false while it is
// still going.
func (t *Task) FinishedAt() (at time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finishedAt, t.finished
}

// Wait blocks until the run finishes or ctx is done. A cancelled run
// returns the outputs gathered so far with a CANCELLED error.
func (t *Task) Wait(ctx context.Context) (map[string]any, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	if t.status == schema.StatusCancelled {
		return t.outputs, schema.NewError(schema.ErrCodeCancelled, "workflow was cancelled")
	}
	return t.outputs, nil
}

// Cancel cancels the workflow and every node still processing. Executors
// observe it through their context; results arriving afterwards are
// discarded. Returns false if the workflow had already terminated.
func (t *Task) Cancel() bool {
	statuses := t.rt.Statuses
	if !statuses.Workflow().Cancel() {
		return false
	}
	for _, id := range statuses.GetStatusNodeIDs(schema.StatusProcessing) {
		statuses.Node(id).Cancel()
	}

	t.mu.Lock()
	t.status = schema.StatusCancelled
	t.mu.Unlock()

	t.cancel()
	return true
}

// OnComplete registers fn to run when the workflow succeeds. It runs
// immediately if that already happened.
func (t *Task) OnComplete(fn func(outputs map[string]any)) {
	t.mu.Lock()
	if !t.finished || t.status != schema.StatusSucceeded {
		t.onComplete = append(t.onComplete, fn)
		t.mu.Unlock()
		return
	}
	outputs := t.outputs
	t.mu.Unlock()
	fn(outputs)
}

// OnError registers fn to run when the workflow fails. It runs
// immediately if that already happened.
func (t *Task) OnError(fn func(err error)) {
	t.mu.Lock()
	if !t.finished || t.status != schema.StatusFailed {
		t.onError = append(t.onError, fn)
		t.mu.Unlock()
		return
	}
	err := t.err
	t.mu.Unlock()
	fn(err)
}

func (t *Task) finish(outputs map[string]any, err error) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	t.finishedAt = time.Now()
	t.outputs = outputs
	t.err = err
	t.status = t.rt.WorkflowStatus()

	var complete []func(map[string]any)
	var failed []func(error)
	switch t.status {
	case schema.StatusSucceeded:
		complete = t.onComplete
	case schema.StatusFailed:
		failed = t.onError
	}
	t.onComplete, t.onError = nil, nil
	t.mu.Unlock()

	t.cancel()
	close(t.done)

	for _, fn := range complete {
		fn(outputs)
	}
	for _, fn := range failed {
		fn(err)
	}
}
