package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/citadel-ai/langcheckchat/internal/llm"
)

// EmbeddingSimilarity scores the cosine similarity of the embeddings of inputs 0 and 1.
// It stands in for the sidecar's semantic similarity when local models are off.
func EmbeddingSimilarity(embedder llm.Embedder) Scorer {
	return ScorerFunc(func(ctx context.Context, inputs []string) (Score, error) {
		if err := requireInputs(inputs, 2); err != nil {
			return Score{}, err
		}
		vecs, err := embedder.Embed(ctx, inputs[:2])
		if err != nil {
			return Score{}, fmt.Errorf("embed inputs: %w", err)
		}
		if len(vecs) != 2 {
			return Score{}, fmt.Errorf("expected 2 embeddings, got %d", len(vecs))
		}
		return Score{Value: Cosine(vecs[0], vecs[1])}, nil
	})
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
