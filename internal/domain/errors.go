package domain

import "errors"

// Common validation errors for tasks and messages
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrNilMessage       = errors.New("task message cannot be nil")
	ErrNoMessageParts   = errors.New("message must contain at least one part")
	ErrInvalidTaskState = errors.New("invalid task state")
	ErrInvalidPartType  = errors.New("invalid message part type")

	// ErrTerminalState is returned when a status update is attempted on a task
	// that has already reached completed, failed, or cancelled.
	ErrTerminalState = errors.New("task is in a terminal state")

	// ErrInvalidTransition is returned when a status update names a state that
	// is not reachable from the task's current state.
	ErrInvalidTransition = errors.New("invalid task state transition")
)
