// Package scoring implements the text-quality scorers a metric can be computed with:
// pure-Go local scorers (readability, ROUGE), the self-hosted LangCheck sidecar,
// embedding similarity and LLM judges.
package scoring

import (
	"context"
	"fmt"
)

// Score is one computed metric value. Explanation is only set by scorers that
// produce a rationale, i.e. LLM judges.
type Score struct {
	Value       float64
	Explanation *string
}

// Scorer computes a metric value from positional inputs. The meaning of each
// position is fixed by the metric definition, e.g. (response, source).
type Scorer interface {
	Score(ctx context.Context, inputs []string) (Score, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(ctx context.Context, inputs []string) (Score, error)

func (f ScorerFunc) Score(ctx context.Context, inputs []string) (Score, error) {
	return f(ctx, inputs)
}

func requireInputs(inputs []string, n int) error {
	if len(inputs) < n {
		return fmt.Errorf("scorer needs %d inputs, got %d", n, len(inputs))
	}
	return nil
}
