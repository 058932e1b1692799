package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/citadel-ai/langcheckchat/internal/llm"
	"github.com/citadel-ai/langcheckchat/internal/models"

	"go.uber.org/zap"
)

// japanesePrefix asks the model to answer in Japanese.
const japanesePrefix = "日本語で答えてください\n"

const qaTemplate = `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `

// Engine retrieves relevant chunks and generates an answer grounded on them.
type Engine struct {
	index     *Index
	embedder  llm.Embedder
	completer llm.Completer
	topK      int
	logger    *zap.Logger
}

func NewEngine(index *Index, embedder llm.Embedder, completer llm.Completer, topK int, logger *zap.Logger) *Engine {
	if topK < 1 {
		topK = 3
	}
	return &Engine{
		index:     index,
		embedder:  embedder,
		completer: completer,
		topK:      topK,
		logger:    logger,
	}
}

// Query answers message and returns the answer together with the retrieved
// source passages, newline-joined.
func (e *Engine) Query(ctx context.Context, message, language string) (string, string, error) {
	query := message
	if language == models.LanguageJapanese {
		query = japanesePrefix + message
	}

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", "", fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return "", "", fmt.Errorf("expected 1 query embedding, got %d", len(vecs))
	}

	chunks := e.index.Search(vecs[0], e.topK)
	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Text
	}
	source := strings.Join(sources, "\n")

	response, err := e.completer.Complete(ctx, fmt.Sprintf(qaTemplate, source, query))
	if err != nil {
		return "", "", fmt.Errorf("generate answer: %w", err)
	}

	e.logger.Debug("RAG query answered",
		zap.String("language", language),
		zap.Int("sources", len(chunks)))
	return strings.TrimSpace(response), source, nil
}
