// Package ai is the provider-agnostic gateway to chat completion backends.
// It generates study questions from context snippets and evaluates learner
// answers, classifying every failure so callers never see raw transport
// errors.
package ai

import (
	"context"
	"fmt"

	"github.com/studyowl/backend/internal/storage/models"
)

// Provider is one configured chat completion backend.
type Provider interface {
	// GenerateQuestion produces a single question from the given material.
	GenerateQuestion(ctx context.Context, contextSnippet string) (string, error)

	// EvaluateAnswer scores a learner's answer to a previously generated
	// question. contextSnippet is the material the question was grounded
	// on; it travels with every evaluation so the model judges against the
	// source, not its own recall.
	EvaluateAnswer(ctx context.Context, question, answer, contextSnippet string) (*Evaluation, error)

	// TestConnection performs a minimal round trip to verify the backend is
	// reachable with the configured credentials.
	TestConnection(ctx context.Context) error

	// Name reports the provider identifier for logs and metrics.
	Name() string
}

// ValidateConfig enforces the per-provider field requirements before a
// config is persisted or a provider is built.
func ValidateConfig(cfg *models.AIConfig) error {
	switch cfg.Provider {
	case models.ProviderDeepSeek, models.ProviderOpenAI:
		if cfg.APIKey == "" {
			return fmt.Errorf("provider %s requires an api_key", cfg.Provider)
		}
	case models.ProviderLocal:
		if cfg.APIURL == "" {
			return fmt.Errorf("provider %s requires an api_url", cfg.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if cfg.MaxTokens < 100 || cfg.MaxTokens > 4000 {
		return fmt.Errorf("max_tokens must be between 100 and 4000")
	}
	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// NewProvider builds a provider from a validated config.
func NewProvider(cfg *models.AIConfig) (Provider, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case models.ProviderDeepSeek, models.ProviderOpenAI:
		return newOpenAIProvider(cfg), nil
	case models.ProviderLocal:
		return newLocalProvider(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
