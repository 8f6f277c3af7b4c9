package songapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/songforge/agent-api/internal/generation"
)

// stubProgressSteps are the progress values a stub job walks through, one
// per status check.
var stubProgressSteps = []int{25, 50, 75}

// stubJob is one in-flight stub generation.
type stubJob struct {
	job    generation.SongJob
	song   generation.Song
	checks int
}

// StubClient is an in-process generation.SongClient. Each job advances one
// step per status check and always succeeds, producing a synthetic audio
// URL. It stands in for the real backend when no base URL is configured.
type StubClient struct {
	mu   sync.Mutex
	jobs map[string]*stubJob
}

// NewStubClient creates an empty StubClient.
func NewStubClient() *StubClient {
	return &StubClient{jobs: make(map[string]*stubJob)}
}

// GenerateSong creates a queued stub job for the request.
func (c *StubClient) GenerateSong(_ context.Context, req generation.SongRequest) (*generation.SongJob, error) {
	id := uuid.New().String()

	duration := req.Duration
	if duration == 0 {
		duration = 120
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[id] = &stubJob{
		job: generation.SongJob{ID: id, State: generation.SongJobQueued},
		song: generation.Song{
			ID:       id,
			Title:    req.Title,
			Tags:     req.Tags,
			Lyrics:   req.Lyrics,
			AudioURL: fmt.Sprintf("https://stub.songforge.local/audio/%s.mp3", id),
			ImageURL: fmt.Sprintf("https://stub.songforge.local/cover/%s.png", id),
			Duration: duration,
		},
	}
	job := c.jobs[id].job
	return &job, nil
}

// CheckStatus advances the job one step and returns its state.
func (c *StubClient) CheckStatus(_ context.Context, jobID string) (*generation.SongJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job %s", generation.ErrGenerationFailed, jobID)
	}

	if !entry.job.State.Finished() {
		if entry.checks < len(stubProgressSteps) {
			entry.job.State = generation.SongJobGenerating
			entry.job.Progress = stubProgressSteps[entry.checks]
		} else {
			entry.job.State = generation.SongJobSucceeded
			entry.job.Progress = 100
		}
		entry.checks++
	}

	job := entry.job
	return &job, nil
}

// WaitForCompletion drives the job to its final state.
func (c *StubClient) WaitForCompletion(ctx context.Context, jobID string) (*generation.SongJob, error) {
	for {
		job, err := c.CheckStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.State.Finished() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// GetSong returns the synthetic song for a succeeded job.
func (c *StubClient) GetSong(_ context.Context, jobID string) (*generation.Song, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown job %s", generation.ErrGenerationFailed, jobID)
	}
	if entry.job.State != generation.SongJobSucceeded {
		return nil, fmt.Errorf("%w: job %s not finished", generation.ErrGenerationFailed, jobID)
	}
	song := entry.song
	return &song, nil
}
