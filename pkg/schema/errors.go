package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeExecution        = "EXECUTION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeCycleDetected    = "CYCLE_DETECTED"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodeInvalidRef       = "INVALID_REF"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeExecutorNotFound = "EXECUTOR_NOT_FOUND"
	ErrCodeMissingInputs    = "MISSING_INPUTS"
	ErrCodeLoopInput        = "LOOP_INPUT_ERROR"
	ErrCodeLLM              = "LLM_ERROR"
	ErrCodeCircuitOpen      = "CIRCUIT_OPEN"
)

// FlowError is the structured error type for all runtime operations.
type FlowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// Is matches another *FlowError by code, so errors.Is(err, NewError(code, ""))
// can be used to test for a category.
func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *FlowError) WithNode(nodeID string) *FlowError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}

// ErrorCode extracts the code of the first FlowError in err's chain.
// Returns ErrCodeExecution for foreign errors.
func ErrorCode(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrCodeExecution
}
