package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionGraph_CloneIsDeep(t *testing.T) {
	graph := ExecutionGraph{
		"3": map[string]any{
			"class_type": "CLIPTextEncode",
			"inputs":     map[string]any{"text": "original", "clip": []any{"4", 1.0}},
		},
	}

	cloned := graph.Clone()
	inputs, ok := NodeInputs(cloned["3"])
	require.True(t, ok)

	inputs["text"] = "changed"
	inputs["clip"].([]any)[0] = "9"

	original, ok := NodeInputs(graph["3"])
	require.True(t, ok)
	assert.Equal(t, "original", original["text"])
	assert.Equal(t, "4", original["clip"].([]any)[0])
}

func TestExecutionGraph_CloneNil(t *testing.T) {
	var graph ExecutionGraph
	assert.Nil(t, graph.Clone())
}

func TestExecutionState(t *testing.T) {
	assert.True(t, ExecutionStateDone.IsTerminal())
	assert.True(t, ExecutionStateFailed.IsTerminal())
	assert.False(t, ExecutionStatePolling.IsTerminal())

	for _, state := range []ExecutionState{
		ExecutionStateUploading, ExecutionStateQueued, ExecutionStatePolling, ExecutionStateExtracting,
	} {
		assert.True(t, state.IsActive(), state)
	}

	for _, state := range []ExecutionState{"", ExecutionStateIdle, ExecutionStateDone, ExecutionStateFailed} {
		assert.False(t, state.IsActive(), state)
	}
}

func TestExecutionRecord_Copy(t *testing.T) {
	finished := time.Now()
	record := ExecutionRecord{
		ID:         "exec-1",
		State:      ExecutionStateFailed,
		ResultRef:  StringPtr("data:image/png;base64,AA=="),
		Error:      &ExecutionFailure{Kind: ErrorKindExecutionTimeout, Message: "timed out"},
		FinishedAt: &finished,
	}

	cp := record.Copy()
	*cp.ResultRef = "changed"
	cp.Error.Message = "changed"

	assert.Equal(t, "data:image/png;base64,AA==", *record.ResultRef)
	assert.Equal(t, "timed out", record.Error.Message)
}

func TestResultRecord_HasOutputs(t *testing.T) {
	var missing *ResultRecord
	assert.False(t, missing.HasOutputs())
	assert.False(t, (&ResultRecord{}).HasOutputs())
	assert.True(t, (&ResultRecord{Outputs: map[string]NodeOutput{}}).HasOutputs())
}
