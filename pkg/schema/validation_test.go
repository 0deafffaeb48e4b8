package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_WarningsKeepValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())

	r.AddWarning("workflow.nodes[loop_0].blocks", ErrCodeValidation, "loop has an empty body")
	assert.True(t, r.Valid())
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
	assert.Nil(t, r.ToError())
}

func TestValidationResult_AddErrorAndMerge(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("workflow.nodes", ErrCodeValidation, "workflow has no end node")

	other := &ValidationResult{}
	other.AddError("workflow", ErrCodeCycleDetected, "graph contains a cycle through [a b]")
	other.AddWarning("workflow.nodes[x]", ErrCodeValidation, "node \"x\" is unreachable from the start node")

	r.Merge(other)
	r.Merge(nil)

	assert.False(t, r.Valid())
	assert.Len(t, r.Errors, 2)
	assert.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityError, r.Errors[1].Severity)
	assert.Equal(t, []string{ErrCodeCycleDetected, ErrCodeValidation}, r.Codes())
}

func TestValidationIssue_String(t *testing.T) {
	assert.Equal(t, "boom", ValidationIssue{Path: "/", Message: "boom"}.String())
	assert.Equal(t, "workflow.edges[0]: boom", ValidationIssue{Path: "workflow.edges[0]", Message: "boom"}.String())
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("workflow.nodes[c].data.conditions[0]", ErrCodeValidation, "condition has no key")

	err := r.ToError()
	require.Error(t, err)
	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ErrCodeValidation, fe.Code)
	assert.Equal(t, "workflow.nodes[c].data.conditions[0]: condition has no key", fe.Message)

	r.AddError("workflow.nodes", ErrCodeConflict, "duplicate node id \"a\" (also in workflow)")
	r.AddError("workflow.nodes", ErrCodeConflict, "duplicate node id \"b\" (also in workflow)")
	require.ErrorAs(t, r.ToError(), &fe)
	assert.Contains(t, fe.Message, "(and 2 more)")
	assert.Equal(t, []string{ErrCodeConflict, ErrCodeValidation}, fe.Details["codes"])
	assert.Len(t, fe.Details["errors"], 3)
}
