package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songforge/agent-api/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func taskInState(t *testing.T, id string, states ...domain.TaskState) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(id, "", domain.NewTextMessage("user", "a calm piano piece"), nil)
	require.NoError(t, err)
	for _, state := range states {
		status := domain.NewStatus(state, domain.NewTextMessage("agent", "update"))
		require.NoError(t, task.ApplyStatus(status))
	}
	return task
}

// collect reads every event currently buffered on the channel without
// blocking on an open channel.
func collect(ch <-chan Event) []Event {
	var events []Event
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestSubscribe(t *testing.T) {
	t.Run("acknowledges with the current status", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1")

		ch, cancel := hub.Subscribe(task)
		defer cancel()

		ack := <-ch
		assert.Equal(t, EventStatusUpdate, ack.Type)
		assert.Equal(t, "task-1", ack.TaskID)
		data, ok := ack.Data.(StatusData)
		require.True(t, ok)
		assert.Equal(t, domain.TaskStateSubmitted, data.Status.State)
		assert.Equal(t, 1, hub.SubscriberCount("task-1"))
	})

	t.Run("terminal task gets ack, completion, and a closed channel", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1", domain.TaskStateWorking, domain.TaskStateCompleted)

		ch, cancel := hub.Subscribe(task)
		defer cancel()

		ack := <-ch
		assert.Equal(t, EventStatusUpdate, ack.Type)
		completion := <-ch
		assert.Equal(t, EventCompletion, completion.Type)

		_, open := <-ch
		assert.False(t, open, "channel must be closed after completion")
		assert.Zero(t, hub.SubscriberCount("task-1"))
	})

	t.Run("cancel detaches and is safe to call twice", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1")

		_, cancel := hub.Subscribe(task)
		require.Equal(t, 1, hub.SubscriberCount("task-1"))

		cancel()
		assert.Zero(t, hub.SubscriberCount("task-1"))
		cancel()
	})
}

func TestOnTaskUpdated(t *testing.T) {
	t.Run("delivers status then artifacts then completion in order", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1")

		ch, cancel := hub.Subscribe(task)
		defer cancel()
		<-ch // ack

		working := taskInState(t, "task-1", domain.TaskStateWorking)
		hub.OnTaskUpdated(context.Background(), working, nil)

		done := taskInState(t, "task-1", domain.TaskStateWorking, domain.TaskStateCompleted)
		artifact := domain.TaskArtifact{
			Parts:     []domain.Part{domain.NewAudioPart("https://cdn.example/a.mp3")},
			Index:     0,
			LastChunk: true,
		}
		done.AddArtifact(artifact)
		hub.OnTaskUpdated(context.Background(), done, []domain.TaskArtifact{artifact})

		var events []Event
		for event := range ch {
			events = append(events, event)
		}
		require.Len(t, events, 4)
		assert.Equal(t, EventStatusUpdate, events[0].Type)
		assert.Equal(t, EventStatusUpdate, events[1].Type)
		assert.Equal(t, EventArtifact, events[2].Type)
		assert.Equal(t, EventCompletion, events[3].Type)

		artifactData, ok := events[2].Data.(ArtifactData)
		require.True(t, ok)
		assert.True(t, artifactData.Artifact.LastChunk)

		completionData, ok := events[3].Data.(CompletionData)
		require.True(t, ok)
		assert.Equal(t, domain.TaskStateCompleted, completionData.Status.State)
		assert.Len(t, completionData.Artifacts, 1)
	})

	t.Run("reaches every subscriber of the task", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1")

		ch1, cancel1 := hub.Subscribe(task)
		ch2, cancel2 := hub.Subscribe(task)
		defer cancel1()
		defer cancel2()
		<-ch1
		<-ch2

		hub.OnTaskUpdated(context.Background(), taskInState(t, "task-1", domain.TaskStateWorking), nil)
		assert.Equal(t, EventStatusUpdate, (<-ch1).Type)
		assert.Equal(t, EventStatusUpdate, (<-ch2).Type)
	})

	t.Run("ignores tasks without subscribers", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		hub.OnTaskUpdated(context.Background(), taskInState(t, "task-x", domain.TaskStateWorking), nil)
	})

	t.Run("skips a subscriber with a full buffer instead of blocking", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1")

		ch, cancel := hub.Subscribe(task)
		defer cancel()

		// Never read: the ack plus these updates overflow the buffer.
		for i := 0; i < subscriberBufferSize+5; i++ {
			hub.OnTaskUpdated(context.Background(), taskInState(t, "task-1", domain.TaskStateWorking), nil)
		}

		events := collect(ch)
		assert.Len(t, events, subscriberBufferSize)
	})

	t.Run("terminal update drops the subscriber set", func(t *testing.T) {
		hub := NewStreamHub(newTestLogger())
		task := taskInState(t, "task-1")

		ch, cancel := hub.Subscribe(task)
		defer cancel()
		<-ch

		failed := taskInState(t, "task-1", domain.TaskStateFailed)
		hub.OnTaskUpdated(context.Background(), failed, nil)

		assert.Equal(t, EventStatusUpdate, (<-ch).Type)
		assert.Equal(t, EventCompletion, (<-ch).Type)
		_, open := <-ch
		assert.False(t, open)
		assert.Zero(t, hub.SubscriberCount("task-1"))
	})
}
