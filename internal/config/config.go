package config

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/ivritype/tirgum/internal/gemini"
)

// DefaultConfig returns a configuration populated with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Gemini: GeminiConfig{
			ExtractModel: gemini.DefaultExtractModel,
			EditModel:    gemini.DefaultEditModel,
			RetryLimit:   3,
			RateLimit:    1.0,
			Source:       "en",
			Target:       "he",
		},
		Pipeline: PipelineConfig{
			Mode:             "sync",
			Concurrency:      4,
			Verify:           false,
			VerifyRetryLimit: 1,
			StrictVerify:     false,
		},
		Dedupe: DedupeConfig{
			MaxDistance: 5,
		},
		Batch: BatchConfig{
			PollIntervalSec: 30,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     200,
			TimeoutSec:      300,
			ShutdownTimeout: 10,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (must be debug, info, warn, or error)", c.LogLevel)
	}

	switch c.Pipeline.Mode {
	case "sync", "batch":
	default:
		return fmt.Errorf("invalid pipeline.mode %q (must be sync or batch)", c.Pipeline.Mode)
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.VerifyRetryLimit < 0 {
		return fmt.Errorf("pipeline.verify_retry_limit must not be negative, got %d", c.Pipeline.VerifyRetryLimit)
	}

	if c.Gemini.RetryLimit < 1 {
		return fmt.Errorf("gemini.retry_limit must be at least 1, got %d", c.Gemini.RetryLimit)
	}
	if c.Gemini.RateLimit <= 0 {
		return fmt.Errorf("gemini.rate_limit must be positive, got %g", c.Gemini.RateLimit)
	}
	if _, err := language.Parse(c.Gemini.Source); err != nil {
		return fmt.Errorf("invalid gemini.source %q: %w", c.Gemini.Source, err)
	}
	if _, err := language.Parse(c.Gemini.Target); err != nil {
		return fmt.Errorf("invalid gemini.target %q: %w", c.Gemini.Target, err)
	}

	if c.Dedupe.MaxDistance < 0 || c.Dedupe.MaxDistance > 64 {
		return fmt.Errorf("dedupe.max_distance must be between 0 and 64, got %d", c.Dedupe.MaxDistance)
	}

	if c.Batch.PollIntervalSec < 1 {
		return fmt.Errorf("batch.poll_interval_sec must be at least 1, got %d", c.Batch.PollIntervalSec)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec < 1 {
		return fmt.Errorf("server.timeout_sec must be at least 1, got %d", c.Server.TimeoutSec)
	}

	return nil
}

// GeminiClientConfig translates the configuration into the capability
// client's own config type.
func (c *Config) GeminiClientConfig() (gemini.Config, error) {
	source, err := language.Parse(c.Gemini.Source)
	if err != nil {
		return gemini.Config{}, fmt.Errorf("invalid gemini.source %q: %w", c.Gemini.Source, err)
	}
	target, err := language.Parse(c.Gemini.Target)
	if err != nil {
		return gemini.Config{}, fmt.Errorf("invalid gemini.target %q: %w", c.Gemini.Target, err)
	}
	return gemini.Config{
		APIKey:       c.Gemini.APIKey,
		ExtractModel: c.Gemini.ExtractModel,
		EditModel:    c.Gemini.EditModel,
		RetryLimit:   c.Gemini.RetryLimit,
		RateLimit:    c.Gemini.RateLimit,
		Source:       source,
		Target:       target,
	}, nil
}
