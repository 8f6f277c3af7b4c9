package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/notify"
	"github.com/songforge/agent-api/internal/queue"
	"github.com/songforge/agent-api/internal/store"
)

// Common sentinel errors for TaskService
var (
	// ErrTaskNotFound indicates that the task does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidRequest indicates that the request message is structurally
	// invalid or carries no usable text content
	ErrInvalidRequest = errors.New("invalid task request")

	// ErrTaskNotCancelable indicates that the task already reached a
	// terminal state
	ErrTaskNotCancelable = errors.New("task is already in a terminal state")
)

// TaskRunner is the queue capability the service needs: submit work and
// request cancellation.
type TaskRunner interface {
	Enqueue(ctx context.Context, taskID string) error
	CancelTask(ctx context.Context, taskID string) (bool, error)
	Status() queue.Stats
}

// StreamSubscriber attaches event streams to tasks.
type StreamSubscriber interface {
	Subscribe(task *domain.Task) (<-chan notify.Event, func())
}

// WebhookRegistry manages per-task callback registrations.
type WebhookRegistry interface {
	Register(taskID string, config notify.WebhookConfig)
	Config(taskID string) (notify.WebhookConfig, bool)
}

// TaskService provides task lifecycle operations
type TaskService interface {
	// CreateTask validates the message, stores a new submitted task, and
	// enqueues it for generation.
	CreateTask(ctx context.Context, sessionID string, message *domain.Message, metadata map[string]any) (*domain.Task, error)

	// CreateTaskWithWebhook additionally registers a callback URL before the
	// task is enqueued, so no update can be missed.
	CreateTaskWithWebhook(ctx context.Context, sessionID string, message *domain.Message, metadata map[string]any, webhook notify.WebhookConfig) (*domain.Task, error)

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// GetTaskHistory returns a task's full status history.
	GetTaskHistory(ctx context.Context, taskID string) ([]domain.TaskStatus, error)

	// ListTasks returns tasks, optionally filtered by session.
	ListTasks(ctx context.Context, sessionID string) ([]*domain.Task, error)

	// CancelTask requests cancellation and returns the task's current record.
	CancelTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Subscribe attaches a progress event stream to an existing task.
	Subscribe(ctx context.Context, taskID string) (<-chan notify.Event, func(), error)

	// RegisterWebhook sets the callback for an existing task.
	RegisterWebhook(ctx context.Context, taskID string, config notify.WebhookConfig) error

	// GetWebhook returns the callback registered for an existing task.
	GetWebhook(ctx context.Context, taskID string) (*notify.WebhookConfig, error)

	// QueueStatus reports current queue activity.
	QueueStatus() queue.Stats
}

// defaultCancelGrace is how long a cancelled in-flight task gets to record
// its own terminal status before the service writes one directly.
const defaultCancelGrace = 30 * time.Second

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	store       store.TaskStore
	runner      TaskRunner
	streams     StreamSubscriber
	webhooks    WebhookRegistry
	logger      *slog.Logger
	cancelGrace time.Duration
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskStore store.TaskStore,
	runner TaskRunner,
	streams StreamSubscriber,
	webhooks WebhookRegistry,
	logger *slog.Logger,
) TaskService {
	return &taskServiceImpl{
		store:       taskStore,
		runner:      runner,
		streams:     streams,
		webhooks:    webhooks,
		logger:      logger.With("component", "task_service"),
		cancelGrace: defaultCancelGrace,
	}
}

func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	sessionID string,
	message *domain.Message,
	metadata map[string]any,
) (*domain.Task, error) {
	return s.createTask(ctx, sessionID, message, metadata, nil)
}

func (s *taskServiceImpl) CreateTaskWithWebhook(
	ctx context.Context,
	sessionID string,
	message *domain.Message,
	metadata map[string]any,
	webhook notify.WebhookConfig,
) (*domain.Task, error) {
	return s.createTask(ctx, sessionID, message, metadata, &webhook)
}

func (s *taskServiceImpl) createTask(
	ctx context.Context,
	sessionID string,
	message *domain.Message,
	metadata map[string]any,
	webhook *notify.WebhookConfig,
) (*domain.Task, error) {
	if message == nil {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !message.HasTextContent() {
		return nil, fmt.Errorf("%w: message must contain a non-empty text part", ErrInvalidRequest)
	}

	task, err := domain.NewTask(uuid.New().String(), sessionID, message, metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	stored, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("storing task: %w", err)
	}

	// The webhook must exist before any update can fire.
	if webhook != nil {
		s.webhooks.Register(stored.ID, *webhook)
	}

	if err := s.runner.Enqueue(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("enqueueing task %s: %w", stored.ID, err)
	}

	s.logger.Info("task created",
		"task_id", stored.ID,
		"session_id", sessionID,
		"webhook", webhook != nil)
	return stored, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return task, nil
}

func (s *taskServiceImpl) GetTaskHistory(ctx context.Context, taskID string) ([]domain.TaskStatus, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return task.History, nil
}

func (s *taskServiceImpl) ListTasks(ctx context.Context, sessionID string) ([]*domain.Task, error) {
	return s.store.ListTasks(ctx, sessionID)
}

func (s *taskServiceImpl) CancelTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if task.Status.State.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotCancelable, task.Status.State)
	}

	accepted, err := s.runner.CancelTask(ctx, taskID)
	if err != nil && !errors.Is(err, queue.ErrTaskNotRunning) {
		return nil, fmt.Errorf("cancelling task %s: %w", taskID, err)
	}

	if !accepted {
		// The task is neither waiting nor processing, yet not terminal: the
		// queue never saw it or already let it go. Record the cancellation
		// directly so the client's view converges.
		if err := s.forceCancel(ctx, taskID); err != nil {
			return nil, err
		}
	} else {
		// Cancellation of in-flight work is cooperative: the pipeline records
		// the cancelled status between yields. If it never does, write one
		// after a grace period so the task cannot stay working forever.
		go s.ensureCancelled(taskID)
	}

	s.logger.Info("task cancellation requested", "task_id", taskID, "accepted", accepted)

	current, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return current, nil
}

// ensureCancelled waits out the cancellation grace period and then writes a
// cancelled status if the task has not reached a terminal state on its own.
// It runs detached from the request context because the cancel response has
// long been sent by then.
func (s *taskServiceImpl) ensureCancelled(taskID string) {
	time.Sleep(s.cancelGrace)

	ctx := context.Background()
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil || task.Status.State.Terminal() {
		return
	}

	s.logger.Warn("task did not honor cancellation, forcing terminal status",
		"task_id", taskID, "state", task.Status.State)
	if err := s.forceCancel(ctx, taskID); err != nil {
		s.logger.Error("failed to force-cancel task", "task_id", taskID, "error", err)
	}
}

// forceCancel writes the cancelled status straight to the store.
func (s *taskServiceImpl) forceCancel(ctx context.Context, taskID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return mapStoreError(err)
	}
	status := domain.NewStatus(domain.TaskStateCancelled,
		domain.NewTextMessage("agent", "Task cancelled."))
	if err := task.ApplyStatus(status); err != nil {
		if errors.Is(err, domain.ErrTerminalState) {
			// Lost the race with the task's own terminal update.
			return nil
		}
		return fmt.Errorf("applying cancelled status: %w", err)
	}
	if _, err := s.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("storing cancelled task: %w", err)
	}
	return nil
}

func (s *taskServiceImpl) Subscribe(ctx context.Context, taskID string) (<-chan notify.Event, func(), error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, mapStoreError(err)
	}
	ch, cancel := s.streams.Subscribe(task)
	return ch, cancel, nil
}

func (s *taskServiceImpl) RegisterWebhook(ctx context.Context, taskID string, config notify.WebhookConfig) error {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return mapStoreError(err)
	}
	s.webhooks.Register(taskID, config)
	return nil
}

func (s *taskServiceImpl) GetWebhook(ctx context.Context, taskID string) (*notify.WebhookConfig, error) {
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return nil, mapStoreError(err)
	}
	config, ok := s.webhooks.Config(taskID)
	if !ok {
		return nil, nil
	}
	return &config, nil
}

func (s *taskServiceImpl) QueueStatus() queue.Stats {
	return s.runner.Status()
}

// mapStoreError translates store sentinels into service sentinels.
func mapStoreError(err error) error {
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	return err
}
