package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowError_Message(t *testing.T) {
	err := NewError(ErrCodeNotFound, "no such task")
	assert.Equal(t, "[NOT_FOUND] no such task", err.Error())

	err = NewErrorf(ErrCodeMissingInputs, "missing %s", "prompt").WithNode("llm_0")
	assert.Equal(t, "[MISSING_INPUTS] node llm_0: missing prompt", err.Error())
}

func TestFlowError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrCodeLLM, "request failed").WithCause(cause)
	wrapped := fmt.Errorf("node llm_0: %w", err)

	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, errors.Is(wrapped, NewError(ErrCodeLLM, "")))
	assert.False(t, errors.Is(wrapped, NewError(ErrCodeNotFound, "")))

	var fe *FlowError
	require.True(t, errors.As(wrapped, &fe))
	assert.Equal(t, ErrCodeLLM, fe.Code)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidRef, ErrorCode(fmt.Errorf("x: %w", NewError(ErrCodeInvalidRef, "bad"))))
	assert.Equal(t, ErrCodeExecution, ErrorCode(errors.New("plain")))
}
