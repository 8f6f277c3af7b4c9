package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/songforge/agent-api/internal/config"
	"github.com/songforge/agent-api/internal/generation"
	"github.com/songforge/agent-api/internal/notify"
	"github.com/songforge/agent-api/internal/platform/gemini"
	"github.com/songforge/agent-api/internal/platform/songapi"
	"github.com/songforge/agent-api/internal/queue"
	"github.com/songforge/agent-api/internal/service"
	"github.com/songforge/agent-api/internal/store"
)

// application holds the assembled dependencies of the running server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	taskStore   store.TaskStore
	taskQueue   *queue.TaskQueue
	streamHub   *notify.StreamHub
	webhooks    *notify.WebhookNotifier
	taskService service.TaskService
}

// newApplication wires the full dependency graph: store, notification
// fan-out, generation pipeline, queue, and service layer. The queue is not
// started yet; the caller does that once wiring succeeded.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	taskStore := store.NewMemoryTaskStore(logger)

	streamHub := notify.NewStreamHub(logger)
	webhooks := notify.NewWebhookNotifier(nil, logger)
	taskStore.AddStatusListener(streamHub)
	taskStore.AddStatusListener(webhooks)

	songClient, err := buildSongClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create song client: %w", err)
	}

	metadataGen, err := buildMetadataGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata generator: %w", err)
	}

	pipeline, err := generation.NewSongPipeline(songClient, metadataGen, generation.SongPipelineConfig{
		MinPromptLength: cfg.Song.MinPromptLen,
		PollInterval:    cfg.Song.PollInterval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create song pipeline: %w", err)
	}

	taskQueue := queue.NewTaskQueue(taskStore, pipeline, queue.Config{
		MaxConcurrent: cfg.Queue.MaxConcurrent,
		MaxRetries:    cfg.Queue.MaxRetries,
		RetryDelay:    cfg.Queue.RetryDelay,
	}, logger)

	taskService := service.NewTaskService(taskStore, taskQueue, streamHub, webhooks, logger)

	return &application{
		config:      cfg,
		logger:      logger,
		taskStore:   taskStore,
		taskQueue:   taskQueue,
		streamHub:   streamHub,
		webhooks:    webhooks,
		taskService: taskService,
	}, nil
}

// buildSongClient selects the generation backend. Without a configured base
// URL the in-process stub serves requests, which keeps the agent runnable in
// local development.
func buildSongClient(cfg *config.Config, logger *slog.Logger) (generation.SongClient, error) {
	if cfg.Song.BaseURL == "" {
		logger.Info("no song backend configured, using stub client")
		return songapi.NewStubClient(), nil
	}
	return songapi.NewHTTPClient(cfg.Song.BaseURL, cfg.Song.APIKey, cfg.Song.PollInterval, http.DefaultClient, logger)
}

// buildMetadataGenerator selects the metadata source. Without a Gemini API
// key the deterministic fallback derives metadata from the prompt text.
func buildMetadataGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (generation.MetadataGenerator, error) {
	if cfg.LLM.GeminiAPIKey == "" {
		logger.Info("no Gemini API key configured, using fallback metadata generator")
		return gemini.NewFallbackGenerator(), nil
	}
	return gemini.NewGenerator(ctx, logger, cfg.LLM)
}

// cleanup releases application resources during shutdown.
func (app *application) cleanup() {
	app.logger.Info("stopping task queue")
	app.taskQueue.Stop()
}
