package openaicompat

import (
	"context"
	"strings"

	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
)

const translateSystemPrompt = `You are a translation engine. Translate the user's text to English.
Return ONLY the translated text. No explanations, no quotes, no commentary.`

// Translator pivots Kinyarwanda queries to English for retrieval using
// the fast generation tier. It is best effort by contract: callers keep
// the original text when translation fails.
type Translator struct {
	client *Client
	model  string
}

func NewTranslator(client *Client, model string) *Translator {
	return &Translator{
		client: client,
		model:  model,
	}
}

func (t *Translator) TranslateToEnglish(ctx context.Context, text, fromLang string) (string, error) {
	userMessage := text
	if fromLang != "" {
		userMessage = "Source language: " + fromLang + "\n\n" + text
	}
	translated, err := t.client.Generate(ctx, translateSystemPrompt, userMessage, t.model, ports.GenerationParams{
		Temperature: 0.1,
		TopP:        0.9,
		MaxTokens:   512,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(translated), nil
}
