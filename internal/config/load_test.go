package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Server.LogLevel)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 1, cfg.Queue.MaxConcurrent)
		assert.Equal(t, 3, cfg.Queue.MaxRetries)
		assert.Equal(t, time.Second, cfg.Queue.RetryDelay)
		assert.Equal(t, 2*time.Second, cfg.Song.PollInterval)
		assert.Equal(t, 10, cfg.Song.MinPromptLen)
		assert.Empty(t, cfg.Song.BaseURL)
		assert.Empty(t, cfg.LLM.GeminiAPIKey)
	})

	t.Run("environment variables take precedence", func(t *testing.T) {
		t.Setenv("SONGFORGE_SERVER_PORT", "9999")
		t.Setenv("SONGFORGE_QUEUE_MAX_CONCURRENT", "4")
		t.Setenv("SONGFORGE_SONG_BASE_URL", "https://songs.example.com")
		t.Setenv("SONGFORGE_QUEUE_RETRY_DELAY", "250ms")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, 4, cfg.Queue.MaxConcurrent)
		assert.Equal(t, "https://songs.example.com", cfg.Song.BaseURL)
		assert.Equal(t, 250*time.Millisecond, cfg.Queue.RetryDelay)
	})

	t.Run("invalid port is rejected", func(t *testing.T) {
		t.Setenv("SONGFORGE_SERVER_PORT", "70000")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validating config")
	})

	t.Run("invalid log level is rejected", func(t *testing.T) {
		t.Setenv("SONGFORGE_SERVER_LOG_LEVEL", "verbose")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("invalid song url is rejected", func(t *testing.T) {
		t.Setenv("SONGFORGE_SONG_BASE_URL", "not a url")
		_, err := Load()
		require.Error(t, err)
	})
}
