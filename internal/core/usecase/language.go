package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
)

// LanguageNormalizer resolves the query language and produces the search
// text used for retrieval. Kinyarwanda queries are pivoted to English
// because the retrieval embedding handles English far better; translation
// is best effort and degrades to the untranslated query.
type LanguageNormalizer struct {
	detector   ports.LanguageDetector
	translator ports.Translator
}

func NewLanguageNormalizer(detector ports.LanguageDetector, translator ports.Translator) *LanguageNormalizer {
	return &LanguageNormalizer{
		detector:   detector,
		translator: translator,
	}
}

// Normalize returns the detected language and the canonical search text.
// A declared language other than "auto" skips detection. The response
// language is derived from the detected language by the prompt assembler,
// never from the pivot.
func (n *LanguageNormalizer) Normalize(ctx context.Context, text, declaredLang string) (string, string) {
	detected := declaredLang
	if declaredLang == "" || declaredLang == "auto" {
		detected = n.detect(text)
	}

	searchText := text
	if detected == "rw" {
		translated, err := n.translator.TranslateToEnglish(ctx, text, detected)
		if err != nil {
			slog.Warn("translation_failed", "from", detected, "error", err)
		} else if strings.TrimSpace(translated) != "" {
			searchText = translated
		}
	}
	return detected, searchText
}

func (n *LanguageNormalizer) detect(text string) string {
	if len(strings.TrimSpace(text)) < 3 || n.detector == nil {
		return "en"
	}
	return n.detector.Detect(text)
}
