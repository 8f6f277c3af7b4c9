package domain

import (
	"maps"
	"time"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

// Possible task states. Submitted is the only initial state; completed,
// failed, and cancelled are terminal. Input-required is terminal for the
// current task instance: the agent does not resume it, the client must submit
// a new task.
const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCancelled     TaskState = "cancelled"
)

// Valid reports whether the state is one of the known task states.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are accepted from the state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from one state to another.
// Terminal states accept nothing. Any non-terminal state may be cancelled.
// Working repeats for progress updates. Submitted may go straight to
// input-required or failed because the pipeline's first yield can be the
// task's only update.
func CanTransition(from, to TaskState) bool {
	if from.Terminal() {
		return false
	}
	if to == TaskStateCancelled {
		return true
	}
	switch from {
	case TaskStateSubmitted:
		switch to {
		case TaskStateWorking, TaskStateInputRequired, TaskStateFailed:
			return true
		}
	case TaskStateWorking:
		switch to {
		case TaskStateWorking, TaskStateInputRequired, TaskStateCompleted, TaskStateFailed:
			return true
		}
	}
	return false
}

// TaskStatus is one entry of a task's lifecycle log: the state, when it was
// entered, and an optional agent message describing it.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
}

// NewStatus creates a TaskStatus for the given state stamped with the current
// UTC time. The message may be nil.
func NewStatus(state TaskState, message *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}
}

// MessageText returns the trimmed text of the status message, or "" if the
// status carries no message.
func (s TaskStatus) MessageText() string {
	return s.Message.Text()
}

// TaskArtifact is an ordered result payload attached to a completed task.
type TaskArtifact struct {
	Parts     []Part         `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Index     int            `json:"index"`
	Append    bool           `json:"append,omitempty"`
	LastChunk bool           `json:"lastChunk,omitempty"`
}

// Task is one prompt-to-artifact job tracked through the lifecycle state
// machine. Status always equals the last element of History; History is
// append-only and is mutated exclusively through ApplyStatus.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []TaskStatus   `json:"history,omitempty"`
	Message   *Message       `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Artifacts []TaskArtifact `json:"artifacts,omitempty"`
}

// NewTask creates a task in the submitted state with the given identity,
// optional session correlation key, originating message, and free-form
// metadata. Returns an error if the ID is empty or the message is invalid.
func NewTask(id, sessionID string, message *Message, metadata map[string]any) (*Task, error) {
	if id == "" {
		return nil, ErrEmptyTaskID
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}

	status := NewStatus(TaskStateSubmitted, nil)
	return &Task{
		ID:        id,
		SessionID: sessionID,
		Status:    status,
		History:   []TaskStatus{status},
		Message:   message,
		Metadata:  metadata,
	}, nil
}

// ApplyStatus appends a status to the task's history and makes it current.
// Returns ErrTerminalState if the task has already reached a terminal state,
// or ErrInvalidTransition if the new state is not reachable from the current
// one; in both cases the task is left unchanged.
func (t *Task) ApplyStatus(status TaskStatus) error {
	if !status.State.Valid() {
		return ErrInvalidTaskState
	}
	if t.Status.State.Terminal() {
		return ErrTerminalState
	}
	if !CanTransition(t.Status.State, status.State) {
		return ErrInvalidTransition
	}

	t.History = append(t.History, status)
	t.Status = status
	return nil
}

// AddArtifact appends an artifact to the task's result set.
func (t *Task) AddArtifact(artifact TaskArtifact) {
	t.Artifacts = append(t.Artifacts, artifact)
}

// Prompt returns the text content of the originating message.
func (t *Task) Prompt() string {
	return t.Message.Text()
}

// Clone returns a copy of the task with its own history and artifact slices
// and its own metadata map, safe to hand to listeners as a read-only
// snapshot. The metadata map must be copied: the queue merges generated
// metadata into its snapshot while readers may be iterating theirs. Messages
// are shared; callers must treat them as immutable.
func (t *Task) Clone() *Task {
	clone := *t
	clone.History = make([]TaskStatus, len(t.History))
	copy(clone.History, t.History)
	clone.Artifacts = make([]TaskArtifact, len(t.Artifacts))
	copy(clone.Artifacts, t.Artifacts)
	if t.Metadata != nil {
		clone.Metadata = maps.Clone(t.Metadata)
	}
	return &clone
}
