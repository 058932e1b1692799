package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient wraps the Gemini API client
type GeminiClient struct {
	client         *genai.Client
	model          *genai.GenerativeModel
	embedder       *genai.EmbeddingModel
	logger         *zap.Logger
	modelName      string
	embeddingModel string
	maxRetries     int
	retryDelay     time.Duration
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(cfg ProviderConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	// Judging must be repeatable
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: genai.Ptr[int32](1024),
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Int("max_retries", cfg.MaxRetries))

	return &GeminiClient{
		client:         client,
		model:          model,
		embedder:       client.EmbeddingModel(cfg.EmbeddingModel),
		logger:         logger,
		modelName:      cfg.ModelName,
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Complete sends a single prompt and joins the text parts of the first candidate.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			if err := sleep(ctx, c.retryDelay); err != nil {
				return "", err
			}
		}

		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from gemini")
			c.logger.Error("Empty response from Gemini", zap.Int("attempt", attempt+1))
			continue
		}

		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		if sb.Len() == 0 {
			lastErr = fmt.Errorf("unexpected response type from gemini")
			c.logger.Error("Unexpected response type", zap.Int("attempt", attempt+1))
			continue
		}
		return sb.String(), nil
	}
	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// Embed embeds all texts in one batch request.
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := c.embedder.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
		}

		resp, err := c.embedder.BatchEmbedContents(ctx, batch)
		if err != nil {
			lastErr = fmt.Errorf("gemini embeddings error: %w", err)
			c.logger.Error("Gemini embeddings error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}
		if len(resp.Embeddings) != len(texts) {
			lastErr = fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
			continue
		}

		out := make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			out[i] = e.Values
		}
		return out, nil
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

// GetModelInfo returns model information
func (c *GeminiClient) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":        "gemini",
		"model":           c.modelName,
		"embedding_model": c.embeddingModel,
		"max_retries":     c.maxRetries,
		"retry_delay":     c.retryDelay.String(),
	}
}
