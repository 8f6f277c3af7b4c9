package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/songforge/agent-api/internal/config"
	"github.com/songforge/agent-api/internal/domain"
	"github.com/songforge/agent-api/internal/generation"
)

// metadataPrompt instructs the model to answer with a bare JSON object so
// the response can be parsed directly.
const metadataPrompt = `You are a songwriting assistant. A user wants a song generated from this description:

%q

Respond with a JSON object containing exactly these fields:
- "title": a short, evocative song title
- "tags": comma-separated style tags (genre, mood, instrumentation)
- "lyrics": complete song lyrics with [Verse] and [Chorus] markers

Respond with only the JSON object, no other text.`

// defaultModel is used when the configuration does not name one.
const defaultModel = "gemini-2.0-flash"

// metadataSchema is the JSON shape the model is asked to produce.
type metadataSchema struct {
	Title  string `json:"title"`
	Tags   string `json:"tags"`
	Lyrics string `json:"lyrics"`
}

// Generator implements generation.MetadataGenerator on the Gemini API.
type Generator struct {
	client     *genai.Client
	model      string
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewGenerator creates a Gemini-backed metadata generator.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	model := cfg.ModelName
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Generator{
		client:     client,
		model:      model,
		logger:     logger.With("component", "gemini_generator"),
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}, nil
}

// GenerateMetadata asks the model for song metadata derived from the prompt.
func (g *Generator) GenerateMetadata(ctx context.Context, prompt string) (domain.SongMetadata, error) {
	text, err := g.callWithRetry(ctx, fmt.Sprintf(metadataPrompt, prompt))
	if err != nil {
		return domain.SongMetadata{}, err
	}
	meta, err := parseMetadataResponse(text)
	if err != nil {
		return domain.SongMetadata{}, err
	}
	g.logger.Debug("metadata generated", "title", meta.Title)
	return meta, nil
}

// callWithRetry calls the model with exponential backoff and jitter for
// transient failures.
func (g *Generator) callWithRetry(ctx context.Context, prompt string) (string, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			// delay = baseDelay * 2^(attempt-1) * jitter in [0.5, 1.0)
			backoff := float64(g.baseDelay) * math.Pow(2, float64(attempt-1))
			delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))
			g.logger.Info("retrying Gemini call", "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.model,
			genai.Text(prompt),
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
		if err != nil {
			g.logger.Warn("Gemini call failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		text := resp.Text()
		if text == "" {
			return "", fmt.Errorf("%w: empty model response", generation.ErrGenerationFailed)
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: exceeded %d attempts: %v",
		generation.ErrTransientFailure, g.maxRetries+1, lastErr)
}

// parseMetadataResponse decodes the model's JSON answer, tolerating markdown
// code fences some models wrap around it.
func parseMetadataResponse(text string) (domain.SongMetadata, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var schema metadataSchema
	if err := json.Unmarshal([]byte(text), &schema); err != nil {
		return domain.SongMetadata{}, fmt.Errorf("%w: unparseable model response: %v",
			generation.ErrGenerationFailed, err)
	}
	if schema.Title == "" && schema.Tags == "" && schema.Lyrics == "" {
		return domain.SongMetadata{}, fmt.Errorf("%w: model response carried no metadata",
			generation.ErrGenerationFailed)
	}
	return domain.SongMetadata{
		Title:  schema.Title,
		Tags:   schema.Tags,
		Lyrics: schema.Lyrics,
	}, nil
}
