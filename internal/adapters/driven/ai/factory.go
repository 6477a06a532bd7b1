package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Provider names an embedding provider.
type Provider string

const (
	ProviderNone   Provider = ""
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
)

// EmbeddingSettings selects and configures an embedding provider.
type EmbeddingSettings struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string // OpenAI-compatible base URL or Ollama host
}

// IsConfigured reports whether a provider was chosen.
func (s *EmbeddingSettings) IsConfigured() bool {
	return s != nil && s.Provider != ProviderNone
}

// NewEmbeddingService builds the configured provider. It returns nil, nil
// when no provider is configured.
func NewEmbeddingService(ctx context.Context, settings *EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch Provider(strings.ToLower(string(settings.Provider))) {
	case ProviderOpenAI:
		return NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
	case ProviderOllama:
		return NewOllamaEmbedding(settings.BaseURL, settings.Model)
	case ProviderGemini:
		return NewGeminiEmbedding(ctx, settings.APIKey, settings.Model)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}
}
