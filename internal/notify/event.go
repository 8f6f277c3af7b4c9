package notify

import (
	"time"

	"github.com/songforge/agent-api/internal/domain"
)

// EventType identifies the kind of a progress event.
type EventType string

// Progress event types
const (
	EventStatusUpdate EventType = "status_update"
	EventArtifact     EventType = "artifact"
	EventCompletion   EventType = "completion"
	EventError        EventType = "error"
)

// Event is one progress notification for a task, delivered over a stream
// subscription or a webhook POST.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"taskId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// StatusData is the payload of a status_update event.
type StatusData struct {
	Status domain.TaskStatus `json:"status"`
}

// ArtifactData is the payload of an artifact event.
type ArtifactData struct {
	Artifact domain.TaskArtifact `json:"artifact"`
}

// CompletionData is the payload of a completion event: the terminal status
// together with everything the task produced.
type CompletionData struct {
	Status    domain.TaskStatus     `json:"status"`
	Artifacts []domain.TaskArtifact `json:"artifacts,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func newEvent(eventType EventType, taskID string, data any) Event {
	return Event{
		Type:      eventType,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewStatusEvent builds a status_update event from a task's current status.
func NewStatusEvent(task *domain.Task) Event {
	return newEvent(EventStatusUpdate, task.ID, StatusData{Status: task.Status})
}

// NewArtifactEvent builds an artifact event for one newly produced artifact.
func NewArtifactEvent(taskID string, artifact domain.TaskArtifact) Event {
	return newEvent(EventArtifact, taskID, ArtifactData{Artifact: artifact})
}

// NewCompletionEvent builds the completion event sent when a task reaches a
// terminal state.
func NewCompletionEvent(task *domain.Task) Event {
	return newEvent(EventCompletion, task.ID, CompletionData{
		Status:    task.Status,
		Artifacts: task.Artifacts,
	})
}

// NewErrorEvent builds an error event.
func NewErrorEvent(taskID string, code int, message string, data any) Event {
	return newEvent(EventError, taskID, ErrorData{Code: code, Message: message, Data: data})
}
