package rag

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text on paragraph boundaries and packs consecutive
// paragraphs into chunks of at most maxChars runes. A single paragraph longer
// than maxChars becomes its own chunk.
func ChunkText(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	var chunks []string
	var cur strings.Builder
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+2+utf8.RuneCountInString(p) > maxChars {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
