package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/ximager/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetType(t *testing.T) {
	assert.Equal(t, ExecutionStartedEvent, ExecutionStarted{}.GetType())
	assert.Equal(t, ExecutionCompletedEvent, ExecutionCompleted{}.GetType())
	assert.Equal(t, ExecutionFailedEvent, ExecutionFailed{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewBaseEvent(ExecutionStartedEvent, "exec-1", "portrait.json")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, ExecutionStartedEvent, event.Type)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, "portrait.json", event.Workflow)
	assert.False(t, event.Timestamp.Before(before))
	assert.NotNil(t, event.Metadata)

	assert.NotEqual(t, event.ID, NewBaseEvent(ExecutionStartedEvent, "exec-1", "portrait.json").ID)
}

func TestExecutionFailed_JSON(t *testing.T) {
	original := ExecutionFailed{
		BaseEvent: NewBaseEvent(ExecutionFailedEvent, "exec-1", "portrait.json"),
		RunID:     "run-9",
		Kind:      models.ErrorKindExecutionTimeout,
		Error:     "no result after 60 attempts",
		Duration:  time.Minute,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"execution.failed"`)
	assert.Contains(t, string(data), `"kind":"ExecutionTimeout"`)
	assert.Contains(t, string(data), `"execution_id":"exec-1"`)

	var decoded ExecutionFailed
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.RunID, decoded.RunID)
	assert.Equal(t, original.Duration, decoded.Duration)
}
