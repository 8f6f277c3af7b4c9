package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/songforge/agent-api/internal/domain"
)

// Prompt quality responses sent back as input-required statuses.
const (
	msgEmptyPrompt = "Please provide a prompt describing the song you want to create."
	msgShortPrompt = "Please provide a more detailed description of the song you want to create."
)

// SongPipelineConfig holds tuning knobs for the song pipeline.
type SongPipelineConfig struct {
	// MinPromptLength is the minimum trimmed prompt length accepted for
	// generation. Shorter prompts produce an input-required status.
	MinPromptLength int

	// PollInterval is the delay between backend job status checks.
	PollInterval time.Duration
}

// DefaultSongPipelineConfig returns a SongPipelineConfig with reasonable
// defaults.
func DefaultSongPipelineConfig() SongPipelineConfig {
	return SongPipelineConfig{
		MinPromptLength: 10,
		PollInterval:    2 * time.Second,
	}
}

// SongPipeline implements Pipeline against a song backend. Metadata fields
// missing from the task (title, tags, lyrics) are filled by the metadata
// generator before the backend request is submitted.
type SongPipeline struct {
	client   SongClient
	metadata MetadataGenerator
	config   SongPipelineConfig
	logger   *slog.Logger
}

// NewSongPipeline creates a SongPipeline with the given collaborators.
func NewSongPipeline(
	client SongClient,
	metadata MetadataGenerator,
	config SongPipelineConfig,
	logger *slog.Logger,
) (*SongPipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: song client cannot be nil", ErrInvalidConfig)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata generator cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
	}
	if config.MinPromptLength <= 0 {
		config.MinPromptLength = 10
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}

	return &SongPipeline{
		client:   client,
		metadata: metadata,
		config:   config,
		logger:   logger.With("component", "song_pipeline"),
	}, nil
}

// Generate starts a producer goroutine for the task and returns its stream.
func (p *SongPipeline) Generate(ctx context.Context, task *domain.Task) (Stream, error) {
	stream := NewUpdateStream()
	go p.run(ctx, task, stream)
	return stream, nil
}

func (p *SongPipeline) run(ctx context.Context, task *domain.Task, stream *UpdateStream) {
	defer stream.Close()

	logger := p.logger.With("task_id", task.ID)

	prompt := strings.TrimSpace(task.Prompt())
	if prompt == "" {
		logger.Info("rejecting task with empty prompt")
		p.emit(ctx, stream, inputRequired(msgEmptyPrompt))
		return
	}
	if len(prompt) < p.config.MinPromptLength {
		logger.Info("rejecting task with too-short prompt", "prompt_length", len(prompt))
		p.emit(ctx, stream, inputRequired(msgShortPrompt))
		return
	}

	// Resolve metadata before the first yield: a transient generator failure
	// here is retryable because nothing has been applied to the task yet and
	// no non-idempotent backend call has been made.
	meta := domain.SongMetadataFromMap(task.Metadata)
	if !meta.Complete() {
		generated, err := p.metadata.GenerateMetadata(ctx, prompt)
		if err != nil {
			logger.Warn("metadata generation failed", "error", err)
			stream.Fail(ctx, fmt.Errorf("generating song metadata: %w", err))
			return
		}
		meta = meta.Merge(generated)
	}

	if !p.emit(ctx, stream, &Update{
		Status:   working(fmt.Sprintf("Preparing to generate %q", meta.Title)),
		Metadata: meta.ToMap(nil),
	}) {
		return
	}
	if p.checkCancelled(ctx, stream, logger) {
		return
	}

	job, err := p.client.GenerateSong(ctx, SongRequest{
		Prompt:   prompt,
		Title:    meta.Title,
		Tags:     meta.Tags,
		Lyrics:   meta.Lyrics,
		Duration: meta.Duration,
	})
	if err != nil {
		logger.Error("song generation request failed", "error", err)
		p.emit(ctx, stream, failed(fmt.Sprintf("Song generation request failed: %v", err)))
		return
	}
	logger.Info("song generation started", "job_id", job.ID)

	for !job.State.Finished() {
		if p.checkCancelled(ctx, stream, logger) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.config.PollInterval):
		}

		job, err = p.client.CheckStatus(ctx, job.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("song status check failed", "job_id", job.ID, "error", err)
			p.emit(ctx, stream, failed(fmt.Sprintf("Song generation failed: %v", err)))
			return
		}

		if !job.State.Finished() {
			if !p.emit(ctx, stream, &Update{
				Status: working(fmt.Sprintf("Generating song: %d%%", job.Progress)),
			}) {
				return
			}
		}
	}

	if job.State == SongJobFailed {
		reason := job.Error
		if reason == "" {
			reason = ErrGenerationFailed.Error()
		}
		logger.Error("song generation failed at backend", "job_id", job.ID, "reason", reason)
		p.emit(ctx, stream, failed("Song generation failed: "+reason))
		return
	}

	song, err := p.client.GetSong(ctx, job.ID)
	if err != nil {
		logger.Error("fetching finished song failed", "job_id", job.ID, "error", err)
		p.emit(ctx, stream, failed(fmt.Sprintf("Fetching generated song failed: %v", err)))
		return
	}

	artifact := songArtifact(song)
	logger.Info("song generation completed", "job_id", job.ID, "audio_url", song.AudioURL)
	p.emit(ctx, stream, &Update{
		Status:    completed(fmt.Sprintf("Song %q generated successfully", song.Title)),
		Artifacts: []domain.TaskArtifact{artifact},
	})
}

// emit yields one update; returns false when the consumer is gone.
func (p *SongPipeline) emit(ctx context.Context, stream *UpdateStream, update *Update) bool {
	return stream.Emit(ctx, update) == nil
}

// checkCancelled observes the cooperative cancellation flag between yields
// and, when set, emits the cancelled terminal update.
func (p *SongPipeline) checkCancelled(ctx context.Context, stream *UpdateStream, logger *slog.Logger) bool {
	if !stream.Cancelled() {
		return false
	}
	logger.Info("song generation cancelled")
	p.emit(ctx, stream, &Update{
		Status: domain.NewStatus(domain.TaskStateCancelled,
			domain.NewTextMessage("agent", "Song generation cancelled.")),
	})
	return true
}

// songArtifact builds the result artifact for a finished song: the audio
// part followed by a data part carrying the descriptive metadata.
func songArtifact(song *Song) domain.TaskArtifact {
	return domain.TaskArtifact{
		Parts: []domain.Part{
			domain.NewAudioPart(song.AudioURL),
			domain.NewDataPart(map[string]any{
				"title":    song.Title,
				"tags":     song.Tags,
				"lyrics":   song.Lyrics,
				"duration": song.Duration,
				"imageUrl": song.ImageURL,
			}),
		},
		Metadata:  map[string]any{"songId": song.ID},
		Index:     0,
		LastChunk: true,
	}
}

func agentStatus(state domain.TaskState, text string) domain.TaskStatus {
	return domain.NewStatus(state, domain.NewTextMessage("agent", text))
}

func inputRequired(text string) *Update {
	return &Update{Status: agentStatus(domain.TaskStateInputRequired, text)}
}

func working(text string) domain.TaskStatus {
	return agentStatus(domain.TaskStateWorking, text)
}

func completed(text string) domain.TaskStatus {
	return agentStatus(domain.TaskStateCompleted, text)
}

func failed(text string) *Update {
	return &Update{Status: agentStatus(domain.TaskStateFailed, text)}
}
