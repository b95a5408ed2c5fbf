// Package events defines event types for translation and workflow execution
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "polytrans.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound trigger events.
	TranslationCompletedEvent EventType = "translation.completed"
	WorkflowRunRequestedEvent EventType = "workflow.run.requested"

	// Execution lifecycle events.
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Metadata:  make(map[string]any),
	}
}

// TranslationCompleted announces that a piece of content finished
// translation and is ready for post-processing workflows.
type TranslationCompleted struct {
	BaseEvent

	PostID         string         `json:"post_id"`
	SourceLanguage string         `json:"source_language"`
	TargetLanguage string         `json:"target_language"`
	Payload        map[string]any `json:"payload,omitempty"`
}

func (e TranslationCompleted) GetType() EventType {
	return TranslationCompletedEvent
}

// WorkflowRunRequested asks for a single workflow run against one post,
// typically issued from the API.
type WorkflowRunRequested struct {
	BaseEvent

	WorkflowID string         `json:"workflow_id"`
	PostID     string         `json:"post_id"`
	TestMode   bool           `json:"test_mode"`
	Context    map[string]any `json:"context,omitempty"`
	Initiator  string         `json:"initiator,omitempty"`
}

func (e WorkflowRunRequested) GetType() EventType {
	return WorkflowRunRequestedEvent
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowID   string `json:"workflow_id"`
	WorkflowName string `json:"workflow_name"`
	PostID       string `json:"post_id"`
	TestMode     bool   `json:"test_mode"`
	Initiator    string `json:"initiator,omitempty"`
}

func (e WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	WorkflowID    string `json:"workflow_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (e WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	WorkflowID    string `json:"workflow_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
	Error         string `json:"error"`
}

func (e WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}
