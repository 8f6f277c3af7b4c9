package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/songforge/agent-api/internal/domain"
)

// TaskListener receives a read-only snapshot of a task after every successful
// update that changed its observable state, together with the artifacts that
// update added. Listeners are process-lifetime singletons registered at
// startup; they must not mutate the task and must not call back into the
// store from the callback.
type TaskListener interface {
	OnTaskUpdated(ctx context.Context, task *domain.Task, newArtifacts []domain.TaskArtifact)
}

// TaskListenerFunc adapts a function to the TaskListener interface.
type TaskListenerFunc func(ctx context.Context, task *domain.Task, newArtifacts []domain.TaskArtifact)

// OnTaskUpdated calls the wrapped function.
func (f TaskListenerFunc) OnTaskUpdated(ctx context.Context, task *domain.Task, newArtifacts []domain.TaskArtifact) {
	f(ctx, task, newArtifacts)
}

// TaskStore defines the interface for task persistence and change
// notification.
type TaskStore interface {
	// CreateTask stores a new task and returns the stored copy.
	// Returns ErrDuplicateTask if the ID already exists.
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// GetTask returns the task with the given ID, or ErrTaskNotFound.
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// UpdateTask replaces the stored record keyed by task.ID and notifies
	// listeners. Returns ErrTaskNotFound if no such task exists.
	UpdateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// ListTasks returns all tasks, optionally filtered by session ID.
	ListTasks(ctx context.Context, sessionID string) ([]*domain.Task, error)

	// DeleteTask removes the task with the given ID. Idempotent.
	DeleteTask(ctx context.Context, id string) error

	// AddStatusListener registers a listener invoked on every update that
	// changes a task's observable state. Listeners cannot be removed.
	AddStatusListener(listener TaskListener)
}

// MemoryTaskStore is the in-memory TaskStore implementation. All access is
// serialized by a single mutex, which also orders listener notification with
// the write that triggered it.
type MemoryTaskStore struct {
	mu        sync.Mutex
	tasks     map[string]*domain.Task
	listeners []TaskListener
	logger    *slog.Logger
}

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore(logger *slog.Logger) *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks:  make(map[string]*domain.Task),
		logger: logger.With("component", "task_store"),
	}
}

// CreateTask stores a new task and returns the stored copy.
func (s *MemoryTaskStore) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.ID == "" {
		return nil, domain.ErrEmptyTaskID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}

	s.tasks[task.ID] = task.Clone()
	s.logger.Debug("task created",
		"task_id", task.ID,
		"session_id", task.SessionID,
		"state", task.Status.State)

	return task.Clone(), nil
}

// GetTask returns a copy of the task with the given ID.
func (s *MemoryTaskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task.Clone(), nil
}

// UpdateTask replaces the stored record and synchronously notifies listeners
// in registration order. An update that changes neither the status state nor
// the status message text and adds no artifacts is stored without
// re-notifying, so subscribers never see duplicate events for the same
// status.
func (s *MemoryTaskStore) UpdateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.ID == "" {
		return nil, domain.ErrEmptyTaskID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, ok := s.tasks[task.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, task.ID)
	}

	stored := task.Clone()
	s.tasks[task.ID] = stored

	newArtifacts := artifactsAdded(previous, stored)
	if !isStateChanged(previous, stored) && len(newArtifacts) == 0 {
		s.logger.Debug("task update carried no observable change, skipping notification",
			"task_id", task.ID,
			"state", task.Status.State)
		return stored.Clone(), nil
	}

	s.logger.Debug("task updated",
		"task_id", task.ID,
		"state", stored.Status.State,
		"new_artifacts", len(newArtifacts))

	snapshot := stored.Clone()
	for i, listener := range s.listeners {
		s.notifyListener(ctx, i, listener, snapshot, newArtifacts)
	}

	return stored.Clone(), nil
}

// notifyListener invokes one listener, containing any panic so a failing
// subscriber cannot fail the write or starve the remaining listeners.
func (s *MemoryTaskStore) notifyListener(
	ctx context.Context,
	index int,
	listener TaskListener,
	task *domain.Task,
	newArtifacts []domain.TaskArtifact,
) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task listener panicked",
				"listener_index", index,
				"task_id", task.ID,
				"panic", r)
		}
	}()
	listener.OnTaskUpdated(ctx, task, newArtifacts)
}

// ListTasks returns all tasks ordered by creation time. A non-empty sessionID
// restricts the result to tasks carrying that correlation key.
func (s *MemoryTaskStore) ListTasks(ctx context.Context, sessionID string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if sessionID != "" && task.SessionID != sessionID {
			continue
		}
		tasks = append(tasks, task.Clone())
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].History[0].Timestamp.Before(tasks[j].History[0].Timestamp)
	})
	return tasks, nil
}

// DeleteTask removes the task with the given ID; removing a missing task is
// not an error.
func (s *MemoryTaskStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	return nil
}

// AddStatusListener registers a listener. Invocation order is registration
// order.
func (s *MemoryTaskStore) AddStatusListener(listener TaskListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, listener)
	s.logger.Debug("status listener registered", "listener_count", len(s.listeners))
}

// isStateChanged reports whether the update moved the task to a different
// state or changed the status message text.
func isStateChanged(previous, updated *domain.Task) bool {
	if previous.Status.State != updated.Status.State {
		return true
	}
	return previous.Status.MessageText() != updated.Status.MessageText()
}

// artifactsAdded returns the artifacts present on updated beyond those
// already stored on previous.
func artifactsAdded(previous, updated *domain.Task) []domain.TaskArtifact {
	if len(updated.Artifacts) <= len(previous.Artifacts) {
		return nil
	}
	return updated.Artifacts[len(previous.Artifacts):]
}
