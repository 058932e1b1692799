package scoring

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FleschReadingEase scores English text: 206.835 - 1.015*(words/sentences) - 84.6*(syllables/words).
// Higher is easier to read. Input 0 is the text.
var FleschReadingEase = ScorerFunc(func(ctx context.Context, inputs []string) (Score, error) {
	if err := requireInputs(inputs, 1); err != nil {
		return Score{}, err
	}
	return Score{Value: fleschReadingEase(inputs[0])}, nil
})

// TateishiOnoYamadaReadingEase scores Japanese text from its script runs and punctuation.
// Input 0 is the text.
var TateishiOnoYamadaReadingEase = ScorerFunc(func(ctx context.Context, inputs []string) (Score, error) {
	if err := requireInputs(inputs, 1); err != nil {
		return Score{}, err
	}
	return Score{Value: tateishiOnoYamada(inputs[0])}, nil
})

func fleschReadingEase(text string) float64 {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(words) == 0 {
		return 0
	}

	sentences := 0
	inTerminator := false
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminator {
				sentences++
			}
			inTerminator = true
		} else if !unicode.IsSpace(r) {
			inTerminator = false
		}
	}
	if !inTerminator {
		// trailing sentence without a terminator
		sentences++
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordsPerSentence := float64(len(words)) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(len(words))
	return 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
}

// countSyllables approximates English syllables by counting vowel groups.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

type scriptClass int

const (
	scriptOther scriptClass = iota
	scriptAlpha
	scriptHiragana
	scriptKanji
	scriptKatakana
)

func classify(r rune) scriptClass {
	switch {
	case unicode.In(r, unicode.Hiragana):
		return scriptHiragana
	case unicode.In(r, unicode.Katakana) || r == 'ー':
		return scriptKatakana
	case unicode.In(r, unicode.Han):
		return scriptKanji
	case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)):
		return scriptAlpha
	default:
		return scriptOther
	}
}

// tateishiOnoYamada implements
// RE = -0.12*ls - 1.37*la + 7.4*lh - 23.18*lc - 5.4*lk - 4.67*cp + 115.79
// where ls is mean sentence length in characters, la/lh/lc/lk are mean run
// lengths of roman, hiragana, kanji and katakana characters, and cp is the
// ratio of touten to kuten.
func tateishiOnoYamada(text string) float64 {
	text = norm.NFKC.String(text)

	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '。' || r == '!' || r == '?' || r == '\n'
	})
	nonEmpty := 0
	totalChars := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		nonEmpty++
		totalChars += len([]rune(s))
	}
	if nonEmpty == 0 {
		return 0
	}

	runLen := map[scriptClass]int{}
	runCount := map[scriptClass]int{}
	prev := scriptOther
	for _, r := range text {
		c := classify(r)
		if c != scriptOther {
			runLen[c]++
			if c != prev {
				runCount[c]++
			}
		}
		prev = c
	}
	mean := func(c scriptClass) float64 {
		if runCount[c] == 0 {
			return 0
		}
		return float64(runLen[c]) / float64(runCount[c])
	}

	touten := strings.Count(text, "、")
	kuten := strings.Count(text, "。")
	cp := 0.0
	if kuten > 0 {
		cp = float64(touten) / float64(kuten)
	}

	ls := float64(totalChars) / float64(nonEmpty)
	return -0.12*ls - 1.37*mean(scriptAlpha) + 7.4*mean(scriptHiragana) -
		23.18*mean(scriptKanji) - 5.4*mean(scriptKatakana) - 4.67*cp + 115.79
}
