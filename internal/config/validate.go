package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks Config for problems that would break the service at runtime.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}

	if c.Dataset.SampleSize < 1 {
		errs = append(errs, fmt.Sprintf("DATASET_SAMPLE_SIZE must be positive, got %d", c.Dataset.SampleSize))
	}
	if c.Memory.MaxTurns < 1 {
		errs = append(errs, fmt.Sprintf("MEMORY_MAX_TURNS must be positive, got %d", c.Memory.MaxTurns))
	}
	if c.Context.MaxSize < 1 {
		errs = append(errs, fmt.Sprintf("CONTEXT_MAX_SIZE must be positive, got %d", c.Context.MaxSize))
	}

	switch c.Model.Provider {
	case "openai":
		if c.Model.Endpoint == "" {
			errs = append(errs, "MODEL_ENDPOINT is required for the openai provider")
		}
		if c.Model.APIKey == "" {
			slog.Warn("MODEL_API_KEY is empty, model requests will be unauthenticated")
		}
	case "mock":
		// No credentials needed.
	default:
		errs = append(errs, fmt.Sprintf("MODEL_PROVIDER must be openai or mock, got %q", c.Model.Provider))
	}

	if c.DB.Enabled() {
		if c.DB.Port < 1 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
		}
		if c.DB.Password == "" {
			errs = append(errs, "DB_PASSWORD is required when DB_HOST is set")
		}
	}
	if c.Redis.Enabled() {
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
