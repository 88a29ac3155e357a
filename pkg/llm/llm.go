// Package llm wraps the model providers behind a single completion interface
// and implements the two prompts the system sends: SQL generation and the
// semantic safety review.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/askdb/askdb/pkg/models"
)

var (
	// ErrUnknownProvider marks a provider name outside the supported set.
	ErrUnknownProvider = errors.New("unknown llm provider")

	// ErrEmptyCompletion marks a reply with no usable content.
	ErrEmptyCompletion = errors.New("llm returned an empty completion")
)

// Provider sends one system+user prompt pair and returns the reply text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config carries provider credentials and model overrides.
type Config struct {
	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

// NewProvider builds the provider selected by name.
func NewProvider(name models.Provider, cfg Config) (Provider, error) {
	switch name {
	case models.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case models.ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}
