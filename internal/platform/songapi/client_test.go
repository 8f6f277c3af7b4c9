package songapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songforge/agent-api/internal/generation"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(baseURL, "test-key", time.Millisecond, nil, newTestLogger())
	require.NoError(t, err)
	return client
}

func TestNewHTTPClient(t *testing.T) {
	_, err := NewHTTPClient("", "", time.Second, nil, newTestLogger())
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateSong(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/songs", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req generation.SongRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "an upbeat track", req.Prompt)

		_ = json.NewEncoder(w).Encode(generation.SongJob{ID: "job-1", State: generation.SongJobQueued})
	}))
	defer server.Close()

	job, err := newClient(t, server.URL).GenerateSong(context.Background(), generation.SongRequest{
		Prompt: "an upbeat track",
		Title:  "Up",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, generation.SongJobQueued, job.State)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestCheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/songs/jobs/job-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(generation.SongJob{
			ID: "job-1", State: generation.SongJobGenerating, Progress: 40,
		})
	}))
	defer server.Close()

	job, err := newClient(t, server.URL).CheckStatus(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)
}

func TestWaitForCompletion(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		state := generation.SongJobGenerating
		if calls >= 3 {
			state = generation.SongJobSucceeded
		}
		_ = json.NewEncoder(w).Encode(generation.SongJob{ID: "job-1", State: state})
	}))
	defer server.Close()

	job, err := newClient(t, server.URL).WaitForCompletion(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, generation.SongJobSucceeded, job.State)
	assert.Equal(t, 3, calls)
}

func TestErrorClassification(t *testing.T) {
	t.Run("server errors are transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).CheckStatus(context.Background(), "job-1")
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prompt rejected", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		_, err := newClient(t, server.URL).GenerateSong(context.Background(), generation.SongRequest{})
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
		assert.Contains(t, err.Error(), "prompt rejected")
	})

	t.Run("connection failures are transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := newClient(t, server.URL).CheckStatus(context.Background(), "job-1")
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
	})
}

func TestStubClient(t *testing.T) {
	t.Run("jobs advance to success", func(t *testing.T) {
		stub := NewStubClient()

		job, err := stub.GenerateSong(context.Background(), generation.SongRequest{
			Title: "Night Drive", Tags: "synthwave", Lyrics: "la la", Duration: 90,
		})
		require.NoError(t, err)
		assert.Equal(t, generation.SongJobQueued, job.State)

		final, err := stub.WaitForCompletion(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, generation.SongJobSucceeded, final.State)
		assert.Equal(t, 100, final.Progress)

		song, err := stub.GetSong(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, "Night Drive", song.Title)
		assert.Contains(t, song.AudioURL, job.ID)
		assert.Equal(t, float64(90), song.Duration)
	})

	t.Run("progress is monotonic", func(t *testing.T) {
		stub := NewStubClient()
		job, err := stub.GenerateSong(context.Background(), generation.SongRequest{Title: "T"})
		require.NoError(t, err)

		last := 0
		for {
			current, err := stub.CheckStatus(context.Background(), job.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, current.Progress, last)
			last = current.Progress
			if current.State.Finished() {
				break
			}
		}
	})

	t.Run("unknown jobs fail", func(t *testing.T) {
		stub := NewStubClient()
		_, err := stub.CheckStatus(context.Background(), "missing")
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)

		_, err = stub.GetSong(context.Background(), "missing")
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	})

	t.Run("song is not served before completion", func(t *testing.T) {
		stub := NewStubClient()
		job, err := stub.GenerateSong(context.Background(), generation.SongRequest{Title: "T"})
		require.NoError(t, err)

		_, err = stub.GetSong(context.Background(), job.ID)
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
	})
}
