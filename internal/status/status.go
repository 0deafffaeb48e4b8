// Package status tracks the lifecycle of a workflow run and each of its
// nodes.
package status

import (
	"sync"
	"time"

	"github.com/rendis/flowrun/pkg/schema"
)

// ValidTransitions maps each status to the statuses it may move to.
// Succeeded and failed nodes may re-enter processing for a new attempt
// (loop bodies run the same node once per item).
var ValidTransitions = map[schema.Status][]schema.Status{
	schema.StatusIdle: {
		schema.StatusProcessing,
		schema.StatusSucceeded,
		schema.StatusFailed,
		schema.StatusCancelled,
	},
	schema.StatusProcessing: {
		schema.StatusSucceeded,
		schema.StatusFailed,
		schema.StatusCancelled,
	},
	schema.StatusSucceeded: {schema.StatusProcessing},
	schema.StatusFailed:    {schema.StatusProcessing},
	schema.StatusCancelled: {},
}

// TransitionHook is called after a transition. nodeID is empty for the
// workflow status.
type TransitionHook func(nodeID string, from, to schema.Status)

// Data is the exported, JSON-ready form of a Status. Times are unix
// milliseconds; zero means unset.
type Data struct {
	Status     schema.Status `json:"status"`
	Terminated bool          `json:"terminated"`
	StartTime  int64         `json:"startTime"`
	EndTime    int64         `json:"endTime,omitempty"`
	TimeCost   int64         `json:"timeCost"`
}

// Status is the state machine of one entity.
type Status struct {
	mu        sync.Mutex
	nodeID    string
	status    schema.Status
	startTime time.Time
	endTime   time.Time
	hooks     func() []TransitionHook
	now       func() time.Time
}

func newStatus(nodeID string, hooks func() []TransitionHook) *Status {
	return &Status{
		nodeID: nodeID,
		status: schema.StatusIdle,
		hooks:  hooks,
		now:    time.Now,
	}
}

// Process enters processing and records the start time. It is a no-op
// while already processing.
func (s *Status) Process() bool {
	return s.transition(schema.StatusProcessing)
}

// Success moves to succeeded unless a terminal state was already reached.
func (s *Status) Success() bool {
	return s.transition(schema.StatusSucceeded)
}

// Fail moves to failed unless a terminal state was already reached.
func (s *Status) Fail() bool {
	return s.transition(schema.StatusFailed)
}

// Cancel moves to cancelled unless a terminal state was already reached.
func (s *Status) Cancel() bool {
	return s.transition(schema.StatusCancelled)
}

func (s *Status) transition(to schema.Status) bool {
	s.mu.Lock()
	from := s.status
	if !s.allowedLocked(to) {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if to == schema.StatusProcessing {
		s.startTime = now
		s.endTime = time.Time{}
	} else {
		if s.startTime.IsZero() {
			s.startTime = now
		}
		s.endTime = now
	}
	s.status = to
	s.mu.Unlock()

	if s.hooks != nil {
		for _, hook := range s.hooks() {
			hook(s.nodeID, from, to)
		}
	}
	return true
}

// allowedLocked enforces the transition table plus the rule that the first
// terminal timestamp of an attempt wins.
func (s *Status) allowedLocked(to schema.Status) bool {
	if to.IsTerminal() && !s.endTime.IsZero() {
		return false
	}
	for _, a := range ValidTransitions[s.status] {
		if a == to {
			return true
		}
	}
	return false
}

// Status returns the current state.
func (s *Status) Status() schema.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Terminated reports whether the current state is terminal.
func (s *Status) Terminated() bool {
	return s.Status().IsTerminal()
}

// StartTime returns when the current attempt started.
func (s *Status) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// EndTime returns when the current attempt ended, zero while running.
func (s *Status) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// TimeCost is endTime - startTime, or the elapsed time while running.
func (s *Status) TimeCost() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeCostLocked()
}

func (s *Status) timeCostLocked() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	if s.endTime.IsZero() {
		return s.now().Sub(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

// Export returns the plain-data record.
func (s *Status) Export() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Data{
		Status:     s.status,
		Terminated: s.status.IsTerminal(),
		TimeCost:   s.timeCostLocked().Milliseconds(),
	}
	if !s.startTime.IsZero() {
		d.StartTime = s.startTime.UnixMilli()
	}
	if !s.endTime.IsZero() {
		d.EndTime = s.endTime.UnixMilli()
	}
	return d
}
