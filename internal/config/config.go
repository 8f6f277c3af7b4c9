package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Queue  QueueConfig  `mapstructure:"queue"  validate:"required"`
	Song   SongConfig   `mapstructure:"song"   validate:"required"`
	LLM    LLMConfig    `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`
}

// QueueConfig contains the task queue settings.
type QueueConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"required,gte=1"`
	MaxRetries    int           `mapstructure:"max_retries" validate:"required,gte=1"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" validate:"required"`
}

// SongConfig contains the song generation backend settings. An empty BaseURL
// selects the in-process stub backend, which is useful for local development
// and tests.
type SongConfig struct {
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey       string        `mapstructure:"api_key"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required"`
	MinPromptLen int           `mapstructure:"min_prompt_length" validate:"required,gte=1"`
}

// LLMConfig contains the metadata generation settings. An empty API key
// selects the deterministic fallback generator.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}
