// Package streaming provides in-process pub/sub of run lifecycle events.
package streaming

import (
	"context"
	"slices"
)

// StreamEvent is a real-time event emitted while a task runs.
type StreamEvent struct {
	TaskID    string `json:"task_id"`
	NodeID    string `json:"node_id,omitempty"`
	EventType string `json:"event_type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	TaskID     string   `json:"task_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// Accepts reports whether e passes the filter. Empty fields match anything.
func (f EventFilter) Accepts(e StreamEvent) bool {
	if f.TaskID != "" && f.TaskID != e.TaskID {
		return false
	}
	return len(f.EventTypes) == 0 || slices.Contains(f.EventTypes, e.EventType)
}

// EventHub provides pub/sub for real-time task events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
