package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix namespaces the environment variables the loader reads, e.g.
// SONGFORGE_SERVER_PORT.
const envPrefix = "SONGFORGE"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values, which take precedence over defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; env vars and defaults cover everything.
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("queue.max_concurrent", 1)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.retry_delay", "1s")

	v.SetDefault("song.base_url", "")
	v.SetDefault("song.api_key", "")
	v.SetDefault("song.poll_interval", "2s")
	v.SetDefault("song.min_prompt_length", 10)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
}
