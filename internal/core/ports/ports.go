package ports

import (
	"context"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
)

// EmbeddingRole distinguishes query-side from passage-side encoding for
// models that frame the two differently (e5-style prefixes).
type EmbeddingRole string

const (
	RoleQuery   EmbeddingRole = "query"
	RolePassage EmbeddingRole = "passage"
)

type LanguageDetector interface {
	// Detect returns a supported language code ("en", "fr", "rw").
	// It never fails: unknown or too-short input maps to "en".
	Detect(text string) string
}

type Translator interface {
	// TranslateToEnglish is best effort; callers fall back to the
	// original text on error.
	TranslateToEnglish(ctx context.Context, text, fromLang string) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string, role EmbeddingRole) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Chunker interface {
	Split(text string) []string
}

type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) (int, error)
	VectorSearch(ctx context.Context, embedding []float32, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error)
	KeywordSearch(ctx context.Context, text string, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error)
	DeleteBySource(ctx context.Context, sourceID string) (int, error)
}

// GenerationParams are sampling settings for one generation call.
type GenerationParams struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

type Generator interface {
	Generate(ctx context.Context, systemPrompt, userMessage, model string, params GenerationParams) (string, error)
	// GenerateStream calls emit for every fragment in generation order.
	// A non-nil error from emit cancels the stream and releases the
	// underlying connection.
	GenerateStream(ctx context.Context, systemPrompt, userMessage, model string, params GenerationParams, emit func(token string) error) error
}

type AuditLog interface {
	// Append must never fail the request path; implementations log and
	// swallow write errors.
	Append(ctx context.Context, entry domain.AuditEntry)
}

type ContentQueue interface {
	PublishIndexRequest(ctx context.Context, payload []byte) error
	SubscribeIndexRequests(ctx context.Context, handler func(context.Context, []byte) error) error
}
