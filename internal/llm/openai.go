package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/citadel-ai/langcheckchat/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

// OpenAIClient talks to OpenAI or to an Azure OpenAI deployment.
type OpenAIClient struct {
	client         openai.Client
	logger         *zap.Logger
	provider       string
	modelName      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
}

// NewOpenAIClient creates a new OpenAI or Azure OpenAI client
func NewOpenAIClient(cfg ProviderConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Type)
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	// retries are done here so that every attempt is logged
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.Type == config.ProviderAzure {
		if cfg.AzureEndpoint == "" {
			return nil, fmt.Errorf("azure endpoint is required")
		}
		opts = append(opts,
			azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	} else {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	logger.Info("OpenAI client initialized",
		zap.String("provider", cfg.Type),
		zap.String("model", cfg.ModelName),
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Int("max_retries", cfg.MaxRetries))

	return &OpenAIClient{
		client:         openai.NewClient(opts...),
		logger:         logger,
		provider:       cfg.Type,
		modelName:      cfg.ModelName,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying OpenAI request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			if err := sleep(ctx, c.retryDelay); err != nil {
				return "", err
			}
		}

		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model:       shared.ChatModel(c.modelName),
			Temperature: openai.Float(0),
		})
		if err != nil {
			lastErr = fmt.Errorf("openai API error: %w", err)
			c.logger.Error("OpenAI API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty response from openai")
			c.logger.Error("Empty response from OpenAI", zap.Int("attempt", attempt+1))
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Embed returns one embedding per text.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
		}

		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: c.embeddingModel,
		})
		if err != nil {
			lastErr = fmt.Errorf("openai embeddings error: %w", err)
			c.logger.Error("OpenAI embeddings error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}
		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
			continue
		}

		out := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(out) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			out[d.Index] = vec
		}
		return out, nil
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (c *OpenAIClient) Close() error {
	return nil
}

// GetModelInfo returns model information
func (c *OpenAIClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":        c.provider,
		"model":           c.modelName,
		"embedding_model": c.embeddingModel,
		"max_retries":     c.maxRetries,
		"retry_delay":     c.retryDelay.String(),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
