package generation

import (
	"context"

	"github.com/songforge/agent-api/internal/domain"
)

// SongJobState is the state reported by the song backend for a generation job.
type SongJobState string

// Song backend job states
const (
	SongJobQueued     SongJobState = "queued"
	SongJobGenerating SongJobState = "generating"
	SongJobSucceeded  SongJobState = "succeeded"
	SongJobFailed     SongJobState = "failed"
)

// Finished reports whether the backend job reached a final state.
func (s SongJobState) Finished() bool {
	return s == SongJobSucceeded || s == SongJobFailed
}

// SongRequest is the input handed to the song backend. All metadata fields
// must be populated before the request is submitted.
type SongRequest struct {
	Prompt   string  `json:"prompt"`
	Title    string  `json:"title"`
	Tags     string  `json:"tags"`
	Lyrics   string  `json:"lyrics"`
	Duration float64 `json:"duration,omitempty"`
}

// SongJob describes a generation job in flight at the backend.
type SongJob struct {
	ID       string       `json:"id"`
	State    SongJobState `json:"state"`
	Progress int          `json:"progress"`
	Error    string       `json:"error,omitempty"`
}

// Song is a finished generation result.
type Song struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Tags     string  `json:"tags"`
	Lyrics   string  `json:"lyrics,omitempty"`
	AudioURL string  `json:"audioUrl"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// SongClient is the capability interface over the external song generation
// backend. Concrete implementations (network client, in-process stub) are
// injected at construction time.
type SongClient interface {
	// GenerateSong submits a generation request and returns the created job.
	GenerateSong(ctx context.Context, req SongRequest) (*SongJob, error)

	// CheckStatus returns the current state of a job.
	CheckStatus(ctx context.Context, jobID string) (*SongJob, error)

	// WaitForCompletion blocks until the job reaches a final state or ctx is
	// done, and returns the final job.
	WaitForCompletion(ctx context.Context, jobID string) (*SongJob, error)

	// GetSong fetches the finished song for a succeeded job.
	GetSong(ctx context.Context, jobID string) (*Song, error)
}

// MetadataGenerator produces song metadata (title, tags, lyrics) from a
// prompt. The pipeline uses it to fill fields the client did not supply.
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, prompt string) (domain.SongMetadata, error)
}
