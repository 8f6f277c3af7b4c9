package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/generation"
	"github.com/songforge/agent-api/internal/store"
)

// Config holds configuration for the task queue
type Config struct {
	// MaxConcurrent is the number of tasks processed at the same time.
	MaxConcurrent int

	// MaxRetries is the total number of generation attempts per task.
	// Only failures that precede the first progress update are retried.
	MaxRetries int

	// RetryDelay is the pause between retry attempts.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 1,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

// Stats is a point-in-time snapshot of queue activity.
type Stats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// handle tracks one task occupying a processing slot. The stream pointer is
// filled once the pipeline has started; a cancel request arriving before that
// is remembered and applied as soon as the stream exists.
type handle struct {
	stream    generation.Stream
	cancelled bool
}

// TaskQueue runs generation pipelines for submitted tasks with bounded
// concurrency. Waiting tasks are held in FIFO order so that cancellation can
// remove them before they ever occupy a slot.
type TaskQueue struct {
	store      store.TaskStore
	pipeline   generation.Pipeline
	config     Config
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	pending   []string
	queued    map[string]struct{}
	active    map[string]*handle
	completed int
	failed    int
	closed    bool
	wake      chan struct{}
}

// NewTaskQueue creates a TaskQueue. Call Start to launch the workers.
func NewTaskQueue(
	taskStore store.TaskStore,
	pipeline generation.Pipeline,
	config Config,
	logger *slog.Logger,
) *TaskQueue {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskQueue{
		store:      taskStore,
		pipeline:   pipeline,
		config:     config,
		logger:     logger.With("component", "task_queue"),
		ctx:        ctx,
		cancelFunc: cancel,
		queued:     make(map[string]struct{}),
		active:     make(map[string]*handle),
		wake:       make(chan struct{}, 1),
	}
}

// Start launches the worker goroutines.
func (q *TaskQueue) Start() {
	for i := 0; i < q.config.MaxConcurrent; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop prevents further submissions, cancels in-flight work, and waits for
// the workers to exit.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	q.closed = true
	for _, h := range q.active {
		h.cancelled = true
		if h.stream != nil {
			h.stream.Cancel()
		}
	}
	q.mu.Unlock()

	q.cancelFunc()
	q.wg.Wait()
}

// Enqueue adds a task to the waiting list. Submitting a task that is already
// waiting or processing is a no-op, so repeated sends for the same ID cannot
// occupy more than one slot.
func (q *TaskQueue) Enqueue(ctx context.Context, taskID string) error {
	if taskID == "" {
		return domain.ErrEmptyTaskID
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, ok := q.queued[taskID]; ok {
		return nil
	}
	if _, ok := q.active[taskID]; ok {
		return nil
	}

	q.pending = append(q.pending, taskID)
	q.queued[taskID] = struct{}{}
	q.signalLocked()
	return nil
}

// CancelTask requests cancellation of a waiting or processing task. A waiting
// task is removed from the queue and marked cancelled directly, without ever
// entering the working state. A processing task is cancelled cooperatively:
// the pipeline observes the request between progress updates and emits the
// terminal cancelled update itself. Returns false when the task is neither
// waiting nor processing.
func (q *TaskQueue) CancelTask(ctx context.Context, taskID string) (bool, error) {
	q.mu.Lock()

	if _, ok := q.queued[taskID]; ok {
		q.removeLocked(taskID)
		q.mu.Unlock()

		if err := q.applyStatus(ctx, taskID, domain.TaskStateCancelled, "Task cancelled before processing started."); err != nil {
			return true, fmt.Errorf("cancelling queued task: %w", err)
		}
		return true, nil
	}

	if h, ok := q.active[taskID]; ok {
		h.cancelled = true
		if h.stream != nil {
			h.stream.Cancel()
		}
		q.mu.Unlock()
		return true, nil
	}

	q.mu.Unlock()
	return false, ErrTaskNotRunning
}

// Status returns current queue counters.
func (q *TaskQueue) Status() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:     len(q.pending),
		Processing: len(q.active),
		Completed:  q.completed,
		Failed:     q.failed,
	}
}

// signalLocked wakes one idle worker. The channel is a coalescing signal;
// workers re-check the waiting list after every task, so a dropped signal
// never strands work.
func (q *TaskQueue) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// removeLocked drops a task from the waiting list, preserving FIFO order of
// the rest.
func (q *TaskQueue) removeLocked(taskID string) {
	delete(q.queued, taskID)
	for i, id := range q.pending {
		if id == taskID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// dequeue pops the oldest waiting task and claims a slot for it. Returns ""
// when nothing is waiting.
func (q *TaskQueue) dequeue() string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return ""
	}
	taskID := q.pending[0]
	q.pending = q.pending[1:]
	delete(q.queued, taskID)
	q.active[taskID] = &handle{}

	if len(q.pending) > 0 {
		q.signalLocked()
	}
	return taskID
}

// release frees the slot held by a task and bumps the outcome counter.
func (q *TaskQueue) release(taskID string, finalState domain.TaskState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, taskID)
	switch finalState {
	case domain.TaskStateCompleted:
		q.completed++
	case domain.TaskStateFailed:
		q.failed++
	}
}

// worker pulls tasks off the waiting list and processes them one at a time.
func (q *TaskQueue) worker(id int) {
	defer q.wg.Done()

	q.logger.Debug("starting worker", "worker_id", id)

	for {
		if taskID := q.dequeue(); taskID != "" {
			q.processTask(taskID, id)
			continue
		}

		select {
		case <-q.ctx.Done():
			q.logger.Debug("stopping worker", "worker_id", id)
			return
		case <-q.wake:
		}
	}
}

// processTask runs the generation pipeline for one task, retrying failures
// that occur before any progress has been recorded.
func (q *TaskQueue) processTask(taskID string, workerID int) {
	logger := q.logger.With("task_id", taskID, "worker_id", workerID)

	finalState := domain.TaskStateFailed
	defer func() { q.release(taskID, finalState) }()

	task, err := q.store.GetTask(q.ctx, taskID)
	if err != nil {
		logger.Warn("skipping task missing from store", "error", err)
		finalState = ""
		return
	}
	if task.Status.State.Terminal() {
		logger.Info("skipping task already in terminal state", "state", task.Status.State)
		finalState = ""
		return
	}

	logger.Info("processing task")

	var lastErr error
	for attempt := 1; attempt <= q.config.MaxRetries; attempt++ {
		state, yielded, err := q.runAttempt(task, logger)
		if err == nil {
			finalState = state
			return
		}
		lastErr = err

		if yielded {
			// Progress reached the task, so the backend request may have gone
			// out. Retrying would duplicate a non-idempotent call.
			logger.Error("generation failed after progress, not retrying", "error", err)
			break
		}
		if q.ctx.Err() != nil {
			finalState = ""
			return
		}

		logger.Warn("generation attempt failed before any progress",
			"attempt", attempt,
			"max_retries", q.config.MaxRetries,
			"error", err)

		if attempt < q.config.MaxRetries {
			select {
			case <-q.ctx.Done():
				finalState = ""
				return
			case <-time.After(q.config.RetryDelay):
			}
		}
	}

	message := fmt.Sprintf("Song generation failed: %v", lastErr)
	if err := q.applyStatus(q.ctx, taskID, domain.TaskStateFailed, message); err != nil {
		logger.Error("failed to record task failure", "error", err)
	}
}

// runAttempt performs one pipeline run. It reports the terminal state the
// task reached, whether any update was applied, and the stream error if the
// attempt failed.
func (q *TaskQueue) runAttempt(task *domain.Task, logger *slog.Logger) (domain.TaskState, bool, error) {
	stream, err := q.pipeline.Generate(q.ctx, task.Clone())
	if err != nil {
		return "", false, err
	}
	defer stream.Cancel()

	q.attachStream(task.ID, stream)

	yielded := false
	finalState := domain.TaskState("")
	for {
		update, err := stream.Next(q.ctx)
		if err != nil {
			if errors.Is(err, generation.ErrStreamDone) {
				return finalState, yielded, nil
			}
			return finalState, yielded, err
		}

		if err := q.applyUpdate(task.ID, update); err != nil {
			// The task moved underneath us, typically a concurrent cancel.
			// Discard the rest of the stream so the producer can finish.
			logger.Warn("stopping stream after update rejection", "error", err)
			q.drain(stream)
			return finalState, yielded, nil
		}
		yielded = true
		if update.Terminal() {
			finalState = update.Status.State
		}
	}
}

// drain discards the remainder of a stream after cancellation so the
// producer is not left blocked on an update nobody will read.
func (q *TaskQueue) drain(stream generation.Stream) {
	stream.Cancel()
	for {
		if _, err := stream.Next(q.ctx); err != nil {
			return
		}
	}
}

// attachStream records the active stream for a task so CancelTask can reach
// it. A cancel request that arrived before the stream existed is applied now.
func (q *TaskQueue) attachStream(taskID string, stream generation.Stream) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h, ok := q.active[taskID]; ok {
		h.stream = stream
		if h.cancelled {
			stream.Cancel()
		}
	}
}

// applyUpdate folds one progress update into the stored task.
func (q *TaskQueue) applyUpdate(taskID string, update *generation.Update) error {
	task, err := q.store.GetTask(q.ctx, taskID)
	if err != nil {
		return fmt.Errorf("loading task for update: %w", err)
	}

	if err := task.ApplyStatus(update.Status); err != nil {
		return fmt.Errorf("applying status %s: %w", update.Status.State, err)
	}
	for _, artifact := range update.Artifacts {
		task.AddArtifact(artifact)
	}
	if len(update.Metadata) > 0 {
		if task.Metadata == nil {
			task.Metadata = make(map[string]any, len(update.Metadata))
		}
		for k, v := range update.Metadata {
			task.Metadata[k] = v
		}
	}

	if _, err := q.store.UpdateTask(q.ctx, task); err != nil {
		return fmt.Errorf("storing task update: %w", err)
	}
	return nil
}

// applyStatus writes a terminal status with an agent message to the stored
// task.
func (q *TaskQueue) applyStatus(ctx context.Context, taskID string, state domain.TaskState, text string) error {
	task, err := q.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("loading task: %w", err)
	}
	status := domain.NewStatus(state, domain.NewTextMessage("agent", text))
	if err := task.ApplyStatus(status); err != nil {
		return fmt.Errorf("applying status %s: %w", state, err)
	}
	if _, err := q.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("storing task: %w", err)
	}
	return nil
}
