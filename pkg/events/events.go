// Package events defines the execution lifecycle notifications published on the event bus.
package events

import (
	"time"

	"github.com/dukex/ximager/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every execution lifecycle event.
const Topic = "ximager.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	Workflow    string         `json:"workflow"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	Prompt string `json:"prompt"`
	Slots  []int  `json:"slots,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	RunID     string        `json:"run_id"`
	ResultRef string        `json:"result_ref"`
	Duration  time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	RunID    string           `json:"run_id,omitempty"`
	Kind     models.ErrorKind `json:"kind"`
	Error    string           `json:"error"`
	Duration time.Duration    `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

func NewBaseEvent(eventType EventType, executionID, workflow string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Workflow:    workflow,
		Metadata:    make(map[string]any),
	}
}
