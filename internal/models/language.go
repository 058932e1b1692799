package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Supported chat languages. Anything else is rejected at the API boundary.
const (
	LanguageEnglish  = "en"
	LanguageJapanese = "ja"
)

// NormalizeLanguage maps a BCP 47 tag ("en-US", "ja_JP", "EN") onto a supported base language.
// An empty tag defaults to English.
func NormalizeLanguage(tag string) (string, error) {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return LanguageEnglish, nil
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}

	base, _ := parsed.Base()
	switch base.String() {
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageJapanese:
		return LanguageJapanese, nil
	default:
		return "", fmt.Errorf("unsupported language %q", tag)
	}
}
