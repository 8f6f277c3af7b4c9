package songapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/songforge/agent-api/internal/generation"
	"github.com/songforge/agent-api/internal/redact"
)

// defaultRequestTimeout bounds a single backend HTTP call.
const defaultRequestTimeout = 30 * time.Second

// HTTPClient implements generation.SongClient against the song backend's
// HTTP API.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewHTTPClient creates a song backend client. A nil http.Client gets a
// default one with a request timeout.
func NewHTTPClient(baseURL, apiKey string, pollInterval time.Duration, client *http.Client, logger *slog.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL cannot be empty", generation.ErrInvalidConfig)
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		client:       client,
		pollInterval: pollInterval,
		logger:       logger.With("component", "song_client"),
	}, nil
}

// GenerateSong submits a generation request and returns the created job.
func (c *HTTPClient) GenerateSong(ctx context.Context, req generation.SongRequest) (*generation.SongJob, error) {
	var job generation.SongJob
	if err := c.do(ctx, http.MethodPost, "/v1/songs", req, &job); err != nil {
		return nil, fmt.Errorf("submitting song request: %w", err)
	}
	return &job, nil
}

// CheckStatus returns the current state of a job.
func (c *HTTPClient) CheckStatus(ctx context.Context, jobID string) (*generation.SongJob, error) {
	var job generation.SongJob
	if err := c.do(ctx, http.MethodGet, "/v1/songs/jobs/"+jobID, nil, &job); err != nil {
		return nil, fmt.Errorf("checking job %s: %w", jobID, err)
	}
	return &job, nil
}

// WaitForCompletion polls the job until it reaches a final state or ctx is
// done.
func (c *HTTPClient) WaitForCompletion(ctx context.Context, jobID string) (*generation.SongJob, error) {
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
		case <-time.After(c.pollInterval):
		}
	}
}

// GetSong fetches the finished song for a succeeded job.
func (c *HTTPClient) GetSong(ctx context.Context, jobID string) (*generation.Song, error) {
	var song generation.Song
	if err := c.do(ctx, http.MethodGet, "/v1/songs/"+jobID, nil, &song); err != nil {
		return nil, fmt.Errorf("fetching song for job %s: %w", jobID, err)
	}
	return &song, nil
}

// do performs one backend request and decodes the JSON response into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: backend returned %d", generation.ErrTransientFailure, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: backend returned %d: %s",
			generation.ErrGenerationFailed, resp.StatusCode, redact.String(strings.TrimSpace(string(payload))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
