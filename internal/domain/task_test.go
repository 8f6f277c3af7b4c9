package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Run("creates submitted task with history", func(t *testing.T) {
		msg := NewTextMessage("user", "an upbeat synthwave track about night driving")
		task, err := NewTask("task-1", "session-1", msg, map[string]any{"title": "Night Drive"})
		require.NoError(t, err)

		assert.Equal(t, "task-1", task.ID)
		assert.Equal(t, "session-1", task.SessionID)
		assert.Equal(t, TaskStateSubmitted, task.Status.State)
		require.Len(t, task.History, 1)
		assert.Equal(t, task.Status, task.History[0])
		assert.False(t, task.Status.Timestamp.IsZero())
	})

	t.Run("rejects empty ID", func(t *testing.T) {
		_, err := NewTask("", "", NewTextMessage("user", "a song"), nil)
		assert.ErrorIs(t, err, ErrEmptyTaskID)
	})

	t.Run("rejects nil message", func(t *testing.T) {
		_, err := NewTask("task-1", "", nil, nil)
		assert.ErrorIs(t, err, ErrNilMessage)
	})

	t.Run("rejects message without parts", func(t *testing.T) {
		_, err := NewTask("task-1", "", &Message{Role: "user"}, nil)
		assert.ErrorIs(t, err, ErrNoMessageParts)
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskState
		to      TaskState
		allowed bool
	}{
		{"submitted to working", TaskStateSubmitted, TaskStateWorking, true},
		{"submitted to input-required", TaskStateSubmitted, TaskStateInputRequired, true},
		{"submitted to failed", TaskStateSubmitted, TaskStateFailed, true},
		{"submitted to cancelled", TaskStateSubmitted, TaskStateCancelled, true},
		{"submitted to completed", TaskStateSubmitted, TaskStateCompleted, false},
		{"working repeats", TaskStateWorking, TaskStateWorking, true},
		{"working to completed", TaskStateWorking, TaskStateCompleted, true},
		{"working to failed", TaskStateWorking, TaskStateFailed, true},
		{"working to input-required", TaskStateWorking, TaskStateInputRequired, true},
		{"working to cancelled", TaskStateWorking, TaskStateCancelled, true},
		{"input-required to cancelled", TaskStateInputRequired, TaskStateCancelled, true},
		{"input-required to working", TaskStateInputRequired, TaskStateWorking, false},
		{"completed accepts nothing", TaskStateCompleted, TaskStateWorking, false},
		{"completed not cancellable", TaskStateCompleted, TaskStateCancelled, false},
		{"failed not cancellable", TaskStateFailed, TaskStateCancelled, false},
		{"cancelled accepts nothing", TaskStateCancelled, TaskStateWorking, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestApplyStatus(t *testing.T) {
	newTask := func(t *testing.T) *Task {
		t.Helper()
		task, err := NewTask("task-1", "", NewTextMessage("user", "a calm piano piece"), nil)
		require.NoError(t, err)
		return task
	}

	t.Run("status always equals history tail", func(t *testing.T) {
		task := newTask(t)

		for _, state := range []TaskState{TaskStateWorking, TaskStateWorking, TaskStateCompleted} {
			require.NoError(t, task.ApplyStatus(NewStatus(state, nil)))
			assert.Equal(t, task.Status, task.History[len(task.History)-1])
		}
		assert.Len(t, task.History, 4)
	})

	t.Run("history is append only", func(t *testing.T) {
		task := newTask(t)
		require.NoError(t, task.ApplyStatus(NewStatus(TaskStateWorking, nil)))

		first := task.History[0]
		require.NoError(t, task.ApplyStatus(NewStatus(TaskStateCompleted, nil)))
		assert.Equal(t, first, task.History[0])
		assert.Len(t, task.History, 3)
	})

	t.Run("rejects updates on terminal task and leaves it unchanged", func(t *testing.T) {
		for _, terminal := range []TaskState{TaskStateCompleted, TaskStateFailed, TaskStateCancelled} {
			task := newTask(t)
			require.NoError(t, task.ApplyStatus(NewStatus(TaskStateWorking, nil)))
			require.NoError(t, task.ApplyStatus(NewStatus(terminal, nil)))

			before := task.Clone()
			err := task.ApplyStatus(NewStatus(TaskStateWorking, nil))
			assert.ErrorIs(t, err, ErrTerminalState)
			assert.Equal(t, before.Status, task.Status)
			assert.Len(t, task.History, len(before.History))
		}
	})

	t.Run("rejects invalid transition", func(t *testing.T) {
		task := newTask(t)
		err := task.ApplyStatus(NewStatus(TaskStateCompleted, nil))
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, TaskStateSubmitted, task.Status.State)
	})

	t.Run("rejects unknown state", func(t *testing.T) {
		task := newTask(t)
		err := task.ApplyStatus(NewStatus(TaskState("sleeping"), nil))
		assert.ErrorIs(t, err, ErrInvalidTaskState)
	})
}

func TestClone(t *testing.T) {
	task, err := NewTask("task-1", "", NewTextMessage("user", "a song about rivers"), nil)
	require.NoError(t, err)
	require.NoError(t, task.ApplyStatus(NewStatus(TaskStateWorking, nil)))
	task.AddArtifact(TaskArtifact{Parts: []Part{NewAudioPart("https://cdn.example/song.mp3")}, Index: 0})

	clone := task.Clone()
	require.NoError(t, task.ApplyStatus(NewStatus(TaskStateCompleted, nil)))
	task.AddArtifact(TaskArtifact{Index: 1})

	assert.Equal(t, TaskStateWorking, clone.Status.State)
	assert.Len(t, clone.History, 2)
	assert.Len(t, clone.Artifacts, 1)
}

func TestCloneMetadataIsIndependent(t *testing.T) {
	task, err := NewTask("task-1", "",
		NewTextMessage("user", "a song about rivers"),
		map[string]any{MetadataKeyTags: "folk"})
	require.NoError(t, err)

	clone := task.Clone()
	clone.Metadata[MetadataKeyTitle] = "River Song"

	assert.NotContains(t, task.Metadata, MetadataKeyTitle)
	assert.Equal(t, "folk", clone.Metadata[MetadataKeyTags])
}

func TestMessageText(t *testing.T) {
	t.Run("joins text parts and skips others", func(t *testing.T) {
		msg := &Message{Role: "user", Parts: []Part{
			NewTextPart("first line"),
			NewAudioPart("https://cdn.example/ref.mp3"),
			NewTextPart("second line"),
		}}
		assert.Equal(t, "first line\nsecond line", msg.Text())
	})

	t.Run("nil message yields empty text", func(t *testing.T) {
		var msg *Message
		assert.Equal(t, "", msg.Text())
		assert.False(t, msg.HasTextContent())
	})

	t.Run("whitespace only text is not content", func(t *testing.T) {
		msg := NewTextMessage("user", "   \n\t ")
		assert.False(t, msg.HasTextContent())
	})
}

func TestSongMetadata(t *testing.T) {
	t.Run("from map ignores unexpected types", func(t *testing.T) {
		m := SongMetadataFromMap(map[string]any{
			"title":    "Night Drive",
			"tags":     "synthwave, retro",
			"lyrics":   42,
			"duration": 120,
		})
		assert.Equal(t, "Night Drive", m.Title)
		assert.Equal(t, "synthwave, retro", m.Tags)
		assert.Empty(t, m.Lyrics)
		assert.Equal(t, float64(120), m.Duration)
		assert.False(t, m.Complete())
	})

	t.Run("merge fills only empty fields", func(t *testing.T) {
		m := SongMetadata{Title: "Keep Me"}
		merged := m.Merge(SongMetadata{Title: "Generated", Tags: "pop", Lyrics: "la la"})
		assert.Equal(t, "Keep Me", merged.Title)
		assert.Equal(t, "pop", merged.Tags)
		assert.Equal(t, "la la", merged.Lyrics)
		assert.True(t, merged.Complete())
	})

	t.Run("to map round trips", func(t *testing.T) {
		m := SongMetadata{Title: "Night Drive", Tags: "synthwave", Lyrics: "neon lights", Duration: 90}
		out := m.ToMap(nil)
		assert.Equal(t, m, SongMetadataFromMap(out))
	})
}
