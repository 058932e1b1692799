// Package llm wraps the hosted model APIs used both as the RAG chatbot and as
// metric judges.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/config"

	"go.uber.org/zap"
)

// Completer answers a single-turn prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is a hosted LLM that can both complete and embed.
type Provider interface {
	Completer
	Embedder
	Close() error
	GetModelInfo() map[string]interface{}
}

// ProviderConfig holds configuration for a single provider instance.
type ProviderConfig struct {
	Type            string
	APIKey          string
	ModelName       string
	EmbeddingModel  string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string
	MaxRetries      int
	RetryDelay      time.Duration
}

// ConfigFromRemote builds a provider config for the given chat model from the remote section.
func ConfigFromRemote(remote config.RemoteConfig, model, embeddingModel string) ProviderConfig {
	return ProviderConfig{
		Type:            remote.Provider,
		APIKey:          remote.APIKey,
		ModelName:       model,
		EmbeddingModel:  embeddingModel,
		BaseURL:         remote.BaseURL,
		AzureEndpoint:   remote.AzureEndpoint,
		AzureAPIVersion: remote.AzureAPIVersion,
		MaxRetries:      remote.MaxRetries,
		RetryDelay:      remote.RetryDelay,
	}
}

// NewProvider creates the provider named by cfg.Type.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case config.ProviderOpenAI, config.ProviderAzure:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
