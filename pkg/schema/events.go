package schema

// Event type constants for the lifecycle event stream.
const (
	EventWorkflowProcessing = "workflow_processing"
	EventWorkflowSucceeded  = "workflow_succeeded"
	EventWorkflowFailed     = "workflow_failed"
	EventWorkflowCancelled  = "workflow_cancelled"

	EventNodeProcessing = "node_processing"
	EventNodeSucceeded  = "node_succeeded"
	EventNodeFailed     = "node_failed"
	EventNodeCancelled  = "node_cancelled"
	EventNodeSkipped    = "node_skipped"

	EventLoopIterStarted   = "loop_iter_started"
	EventLoopIterCompleted = "loop_iter_completed"
)

// Status is the lifecycle state shared by workflows and nodes.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Event is a lifecycle notification published while a task runs.
type Event struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	NodeID    string         `json:"node_id,omitempty"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"`
}
