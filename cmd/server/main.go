// Package main implements the entry point for the SongForge agent server,
// which turns natural-language prompts into generated songs and exposes the
// task lifecycle over JSON-RPC, REST, SSE, and webhooks.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/songforge/agent-api/internal/config"
	"github.com/songforge/agent-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run loads configuration, wires the application, and serves until shutdown.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_concurrent", cfg.Queue.MaxConcurrent,
		"song_backend_configured", cfg.Song.BaseURL != "",
		"gemini_configured", cfg.LLM.GeminiAPIKey != "")

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	app.taskQueue.Start()

	return app.startHTTPServer(ctx, app.setupRouter())
}
