package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/notify"
	"github.com/songforge/agent-api/internal/queue"
	"github.com/songforge/agent-api/internal/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner records enqueued task IDs and returns a scripted cancel result.
type fakeRunner struct {
	enqueued   []string
	enqueueErr error
	cancelOK   bool
	cancelErr  error
	onEnqueue  func(taskID string)
}

func (r *fakeRunner) Enqueue(_ context.Context, taskID string) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	if r.onEnqueue != nil {
		r.onEnqueue(taskID)
	}
	r.enqueued = append(r.enqueued, taskID)
	return nil
}

func (r *fakeRunner) CancelTask(_ context.Context, taskID string) (bool, error) {
	return r.cancelOK, r.cancelErr
}

func (r *fakeRunner) Status() queue.Stats {
	return queue.Stats{Queued: len(r.enqueued)}
}

type serviceFixture struct {
	store    *store.MemoryTaskStore
	runner   *fakeRunner
	hub      *notify.StreamHub
	webhooks *notify.WebhookNotifier
	service  TaskService
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := newTestLogger()
	f := &serviceFixture{
		store:    store.NewMemoryTaskStore(logger),
		runner:   &fakeRunner{},
		hub:      notify.NewStreamHub(logger),
		webhooks: notify.NewWebhookNotifier(nil, logger),
	}
	f.service = NewTaskService(f.store, f.runner, f.hub, f.webhooks, logger)
	return f
}

func userMessage(text string) *domain.Message {
	return domain.NewTextMessage("user", text)
}

func TestCreateTask(t *testing.T) {
	t.Run("stores a submitted task and enqueues it", func(t *testing.T) {
		f := newFixture(t)

		task, err := f.service.CreateTask(context.Background(), "session-1",
			userMessage("an upbeat synthwave track"), nil)
		require.NoError(t, err)

		assert.NotEmpty(t, task.ID)
		assert.Equal(t, "session-1", task.SessionID)
		assert.Equal(t, domain.TaskStateSubmitted, task.Status.State)
		require.Len(t, task.History, 1)
		assert.Equal(t, []string{task.ID}, f.runner.enqueued)

		stored, err := f.store.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, stored.ID)
	})

	t.Run("rejects structurally invalid messages", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name    string
			message *domain.Message
		}{
			{"nil message", nil},
			{"no parts", &domain.Message{Role: "user"}},
			{"empty text", userMessage("")},
			{"whitespace text", userMessage("   ")},
			{"no text part", &domain.Message{
				Role:  "user",
				Parts: []domain.Part{domain.NewDataPart(map[string]any{"k": "v"})},
			}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.service.CreateTask(context.Background(), "", tc.message, nil)
				assert.ErrorIs(t, err, ErrInvalidRequest)
			})
		}
		assert.Empty(t, f.runner.enqueued, "invalid requests must not reach the queue")

		tasks, err := f.store.ListTasks(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, tasks, "invalid requests must not be stored")
	})

	t.Run("carries metadata through to the task", func(t *testing.T) {
		f := newFixture(t)

		task, err := f.service.CreateTask(context.Background(), "",
			userMessage("a ballad"), map[string]any{domain.MetadataKeyTitle: "Alone"})
		require.NoError(t, err)
		assert.Equal(t, "Alone", task.Metadata[domain.MetadataKeyTitle])
	})
}

func TestCreateTaskWithWebhook(t *testing.T) {
	t.Run("registers the callback before enqueueing", func(t *testing.T) {
		f := newFixture(t)

		registeredAtEnqueue := false
		f.runner.onEnqueue = func(taskID string) {
			_, registeredAtEnqueue = f.webhooks.Config(taskID)
		}

		task, err := f.service.CreateTaskWithWebhook(context.Background(), "",
			userMessage("a synth track"), nil,
			notify.WebhookConfig{URL: "https://example.com/hook"})
		require.NoError(t, err)

		assert.True(t, registeredAtEnqueue, "webhook must exist before the queue can emit updates")
		config, ok := f.webhooks.Config(task.ID)
		require.True(t, ok)
		assert.Equal(t, "https://example.com/hook", config.URL)
	})
}

func TestTaskReads(t *testing.T) {
	f := newFixture(t)
	task, err := f.service.CreateTask(context.Background(), "session-1", userMessage("a folk song"), nil)
	require.NoError(t, err)

	t.Run("get task", func(t *testing.T) {
		got, err := f.service.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)

		_, err = f.service.GetTask(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("get history", func(t *testing.T) {
		history, err := f.service.GetTaskHistory(context.Background(), task.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, domain.TaskStateSubmitted, history[0].State)

		_, err = f.service.GetTaskHistory(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("list by session", func(t *testing.T) {
		tasks, err := f.service.ListTasks(context.Background(), "session-1")
		require.NoError(t, err)
		assert.Len(t, tasks, 1)

		tasks, err = f.service.ListTasks(context.Background(), "other-session")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestCancelTask(t *testing.T) {
	t.Run("unknown task", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.CancelTask(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("terminal task is not cancelable", func(t *testing.T) {
		f := newFixture(t)
		task, err := f.service.CreateTask(context.Background(), "", userMessage("a short jingle"), nil)
		require.NoError(t, err)

		stored, err := f.store.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		require.NoError(t, stored.ApplyStatus(domain.NewStatus(domain.TaskStateWorking, nil)))
		require.NoError(t, stored.ApplyStatus(domain.NewStatus(domain.TaskStateCompleted, nil)))
		_, err = f.store.UpdateTask(context.Background(), stored)
		require.NoError(t, err)

		_, err = f.service.CancelTask(context.Background(), task.ID)
		assert.ErrorIs(t, err, ErrTaskNotCancelable)
	})

	t.Run("queue acceptance leaves the write to the queue", func(t *testing.T) {
		f := newFixture(t)
		f.runner.cancelOK = true

		task, err := f.service.CreateTask(context.Background(), "", userMessage("a long epic suite"), nil)
		require.NoError(t, err)

		current, err := f.service.CancelTask(context.Background(), task.ID)
		require.NoError(t, err)
		// The cooperative cancel has not landed yet; the record is untouched.
		assert.Equal(t, domain.TaskStateSubmitted, current.Status.State)
	})

	t.Run("forces a cancelled status when the pipeline never records one", func(t *testing.T) {
		f := newFixture(t)
		f.runner.cancelOK = true
		f.service.(*taskServiceImpl).cancelGrace = 10 * time.Millisecond

		task, err := f.service.CreateTask(context.Background(), "", userMessage("a stubborn drone piece"), nil)
		require.NoError(t, err)

		stored, err := f.store.GetTask(context.Background(), task.ID)
		require.NoError(t, err)
		require.NoError(t, stored.ApplyStatus(domain.NewStatus(domain.TaskStateWorking, nil)))
		_, err = f.store.UpdateTask(context.Background(), stored)
		require.NoError(t, err)

		_, err = f.service.CancelTask(context.Background(), task.ID)
		require.NoError(t, err)

		// Nothing cooperates, so the grace-period write must land.
		require.Eventually(t, func() bool {
			current, err := f.store.GetTask(context.Background(), task.ID)
			return err == nil && current.Status.State == domain.TaskStateCancelled
		}, 5*time.Second, 2*time.Millisecond)
	})

	t.Run("queue miss falls back to a direct cancelled write", func(t *testing.T) {
		f := newFixture(t)
		f.runner.cancelOK = false
		f.runner.cancelErr = queue.ErrTaskNotRunning

		task, err := f.service.CreateTask(context.Background(), "", userMessage("an orphaned request"), nil)
		require.NoError(t, err)

		current, err := f.service.CancelTask(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStateCancelled, current.Status.State)
		require.Len(t, current.History, 2)
		assert.Equal(t, domain.TaskStateSubmitted, current.History[0].State)
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("unknown task", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.service.Subscribe(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("delivers the acknowledgement event", func(t *testing.T) {
		f := newFixture(t)
		task, err := f.service.CreateTask(context.Background(), "", userMessage("a lo-fi beat"), nil)
		require.NoError(t, err)

		ch, cancel, err := f.service.Subscribe(context.Background(), task.ID)
		require.NoError(t, err)
		defer cancel()

		ack := <-ch
		assert.Equal(t, notify.EventStatusUpdate, ack.Type)
		assert.Equal(t, task.ID, ack.TaskID)
	})
}

func TestWebhookManagement(t *testing.T) {
	f := newFixture(t)
	task, err := f.service.CreateTask(context.Background(), "", userMessage("a trance anthem"), nil)
	require.NoError(t, err)

	t.Run("register requires an existing task", func(t *testing.T) {
		err := f.service.RegisterWebhook(context.Background(), "missing",
			notify.WebhookConfig{URL: "https://example.com/hook"})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("get without registration returns nothing", func(t *testing.T) {
		config, err := f.service.GetWebhook(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Nil(t, config)
	})

	t.Run("register then get", func(t *testing.T) {
		require.NoError(t, f.service.RegisterWebhook(context.Background(), task.ID,
			notify.WebhookConfig{URL: "https://example.com/hook"}))

		config, err := f.service.GetWebhook(context.Background(), task.ID)
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "https://example.com/hook", config.URL)
	})
}
