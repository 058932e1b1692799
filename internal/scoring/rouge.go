package scoring

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ROUGE variants computed against a reference answer.
const (
	Rouge1 = "rouge1"
	Rouge2 = "rouge2"
	RougeL = "rougeL"
)

// RougeScorer returns the F-measure of the given ROUGE variant.
// Inputs are (response, reference, ...): the response is scored against the reference.
func RougeScorer(variant string) Scorer {
	return ScorerFunc(func(ctx context.Context, inputs []string) (Score, error) {
		if err := requireInputs(inputs, 2); err != nil {
			return Score{}, err
		}
		if err := ctx.Err(); err != nil {
			return Score{}, err
		}
		pred := tokenize(inputs[0])
		target := tokenize(inputs[1])

		var f float64
		switch variant {
		case Rouge1:
			f = rougeN(target, pred, 1)
		case Rouge2:
			f = rougeN(target, pred, 2)
		default:
			f = rougeLCS(target, pred)
		}
		return Score{Value: f}, nil
	})
}

// tokenize lowercases NFKC-normalized text and splits it into alphanumeric words.
// Kana and kanji have no word boundaries and become one token per character.
func tokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))

	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func ngrams(tokens []string, n int) map[string]int {
	grams := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		grams[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return grams
}

func rougeN(target, pred []string, n int) float64 {
	targetGrams := ngrams(target, n)
	predGrams := ngrams(pred, n)

	var overlap, targetCount, predCount int
	for g, cnt := range targetGrams {
		targetCount += cnt
		overlap += min(cnt, predGrams[g])
	}
	for _, cnt := range predGrams {
		predCount += cnt
	}
	if targetCount == 0 || predCount == 0 {
		return 0
	}
	return fMeasure(float64(overlap)/float64(predCount), float64(overlap)/float64(targetCount))
}

func rougeLCS(target, pred []string) float64 {
	if len(target) == 0 || len(pred) == 0 {
		return 0
	}
	lcs := lcsLength(target, pred)
	return fMeasure(float64(lcs)/float64(len(pred)), float64(lcs)/float64(len(target)))
}

func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func fMeasure(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
