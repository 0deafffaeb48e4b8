// Package app owns the tasks started through the public surfaces. It
// validates workflows before running them and keeps finished tasks around
// long enough for callers to fetch their results.
package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/logging"
	"github.com/rendis/flowrun/internal/report"
	"github.com/rendis/flowrun/pkg/schema"
)

// DefaultTaskTTL is how long a finished task stays queryable.
const DefaultTaskTTL = 30 * time.Minute

// Validator checks a workflow and its inputs before a run.
type Validator interface {
	Validate(ws *schema.WorkflowSchema) *schema.ValidationResult
	ValidateInputs(ws *schema.WorkflowSchema, inputs map[string]any) error
}

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.logger = logger }
}

// WithTaskTTL sets how long finished tasks are kept. Zero or less keeps
// them forever.
func WithTaskTTL(ttl time.Duration) Option {
	return func(a *Application) { a.ttl = ttl }
}

// Application is the service object behind the MCP tools.
type Application struct {
	engine    *engine.Engine
	validator Validator
	logger    *slog.Logger
	ttl       time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	tasks map[string]*engine.Task
}

// New creates an Application. validator may be nil to skip validation.
func New(eng *engine.Engine, validator Validator, opts ...Option) *Application {
	a := &Application{
		engine:    eng,
		validator: validator,
		logger:    slog.Default(),
		ttl:       DefaultTaskTTL,
		now:       time.Now,
		tasks:     make(map[string]*engine.Task),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is the outcome of a task as seen by a caller.
type Result struct {
	ID      string         `json:"id"`
	Status  schema.Status  `json:"status"`
	Outputs map[string]any `json:"outputs,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
}

// Summary is one row of Tasks.
type Summary struct {
	ID         string        `json:"id"`
	Status     schema.Status `json:"status"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

// TaskRun validates ws and inputs, then starts a run. It returns as soon
// as the run is scheduled.
func (a *Application) TaskRun(ctx context.Context, ws *schema.WorkflowSchema, inputs map[string]any) (*engine.Task, error) {
	if ws == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow schema is required")
	}
	if a.validator != nil {
		if err := a.validator.Validate(ws).ToError(); err != nil {
			return nil, err
		}
		if err := a.validator.ValidateInputs(ws, inputs); err != nil {
			return nil, err
		}
	}

	task, err := a.engine.Invoke(ctx, engine.InvokeParams{Schema: ws, Inputs: inputs})
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.tasks[task.ID()] = task
	a.mu.Unlock()

	logging.LogWith(logging.WithTaskID(ctx, task.ID()), a.logger).Info("task started")
	return task, nil
}

// Task returns the task registered under id.
func (a *Application) Task(id string) (*engine.Task, error) {
	a.mu.RLock()
	task, ok := a.tasks[id]
	a.mu.RUnlock()
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "task %q not found", id)
	}
	return task, nil
}

// TaskReport exports the current report of a task.
func (a *Application) TaskReport(id string) (*report.Report, error) {
	task, err := a.Task(id)
	if err != nil {
		return nil, err
	}
	return task.Report(), nil
}

// TaskResult returns the outcome of a task. With wait it blocks until the
// run finishes or ctx is done; otherwise a running task reports its
// current status and no outputs.
func (a *Application) TaskResult(ctx context.Context, id string, wait bool) (*Result, error) {
	task, err := a.Task(id)
	if err != nil {
		return nil, err
	}

	if !wait {
		if _, finished := task.FinishedAt(); !finished {
			return &Result{ID: id, Status: task.Status()}, nil
		}
	}

	outputs, err := task.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	res := &Result{ID: id, Status: task.Status(), Outputs: outputs}
	if err != nil {
		res.Error = err.Error()
		res.Code = schema.ErrorCode(err)
	}
	return res, nil
}

// TaskCancel cancels a task. It reports false when the task had already
// terminated.
func (a *Application) TaskCancel(id string) (bool, error) {
	task, err := a.Task(id)
	if err != nil {
		return false, err
	}
	cancelled := task.Cancel()
	if cancelled {
		a.logger.Info("task cancelled", slog.String("task_id", id))
	}
	return cancelled, nil
}

// TaskValidate runs validation without starting anything.
func (a *Application) TaskValidate(ws *schema.WorkflowSchema) *schema.ValidationResult {
	if a.validator == nil {
		return &schema.ValidationResult{}
	}
	return a.validator.Validate(ws)
}

// Tasks lists registered tasks sorted by ID.
func (a *Application) Tasks() []Summary {
	a.mu.RLock()
	out := make([]Summary, 0, len(a.tasks))
	for id, task := range a.tasks {
		s := Summary{ID: id, Status: task.Status()}
		if at, ok := task.FinishedAt(); ok {
			s.FinishedAt = &at
		}
		out = append(out, s)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sweep drops tasks that finished more than the TTL ago and returns how
// many were removed.
func (a *Application) Sweep() int {
	if a.ttl <= 0 {
		return 0
	}
	cutoff := a.now().Add(-a.ttl)

	a.mu.Lock()
	removed := 0
	for id, task := range a.tasks {
		if at, ok := task.FinishedAt(); ok && !at.After(cutoff) {
			delete(a.tasks, id)
			removed++
		}
	}
	a.mu.Unlock()

	if removed > 0 {
		a.logger.Debug("swept finished tasks", slog.Int("count", removed))
	}
	return removed
}

// Shutdown cancels every running task and waits for them to finish or for
// ctx to be done.
func (a *Application) Shutdown(ctx context.Context) error {
	a.mu.RLock()
	tasks := make([]*engine.Task, 0, len(a.tasks))
	for _, task := range a.tasks {
		tasks = append(tasks, task)
	}
	a.mu.RUnlock()

	for _, task := range tasks {
		task.Cancel()
	}
	for _, task := range tasks {
		select {
		case <-task.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
