package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/citadel-ai/langcheckchat/internal/llm"
	"github.com/citadel-ai/langcheckchat/internal/scoring"
)

const embedBatchSize = 64

// Chunk is one retrievable passage.
type Chunk struct {
	Path string
	Text string
}

// Index is an in-memory vector index over corpus chunks.
type Index struct {
	chunks  []Chunk
	vectors [][]float32
}

// BuildIndex chunks docs and embeds every chunk.
func BuildIndex(ctx context.Context, embedder llm.Embedder, docs []Document, maxChars int) (*Index, error) {
	ix := &Index{}
	for _, d := range docs {
		for _, c := range ChunkText(d.Text, maxChars) {
			ix.chunks = append(ix.chunks, Chunk{Path: d.Path, Text: c})
		}
	}

	for start := 0; start < len(ix.chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(ix.chunks))
		texts := make([]string, 0, end-start)
		for _, c := range ix.chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vecs, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		ix.vectors = append(ix.vectors, vecs...)
	}
	return ix, nil
}

// Len is the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Search returns the k chunks most similar to query, best first.
func (ix *Index) Search(query []float32, k int) []Chunk {
	type hit struct {
		i     int
		score float64
	}
	hits := make([]hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = hit{i: i, score: scoring.Cosine(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	k = min(k, len(hits))
	out := make([]Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = ix.chunks[hits[i].i]
	}
	return out
}
