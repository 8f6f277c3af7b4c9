package store

import "errors"

// Common errors returned by the store package
var (
	// ErrTaskNotFound is returned when a task with the given ID does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrDuplicateTask is returned when creating a task whose ID already exists.
	ErrDuplicateTask = errors.New("task ID already exists")
)
