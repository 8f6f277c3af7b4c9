package queue

import "errors"

// Common errors returned by the queue package
var (
	// ErrQueueClosed is returned when a task is submitted after Stop.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrTaskNotRunning is returned by CancelTask when the task is neither
	// waiting nor processing.
	ErrTaskNotRunning = errors.New("task is not queued or processing")
)
