package usecase

import (
	"context"
	"log/slog"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
)

// RetrievalConfig carries the tuning constants for hybrid search.
// FallbackConfidence (keyword trigger) and MinSimilarity (inclusion floor)
// are distinct knobs: merging them would silently change recall.
type RetrievalConfig struct {
	SearchLimit        int
	KeywordLimit       int
	MinSimilarity      float64
	FallbackConfidence float64
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	if out.SearchLimit <= 0 {
		out.SearchLimit = 20
	}
	if out.KeywordLimit <= 0 {
		out.KeywordLimit = 10
	}
	if out.MinSimilarity <= 0 {
		out.MinSimilarity = 0.3
	}
	if out.FallbackConfidence <= 0 {
		out.FallbackConfidence = 0.5
	}
	return out
}

// RetrievalEngine runs semantic search with a deterministic keyword
// fallback when the semantic side comes back empty or low confidence.
type RetrievalEngine struct {
	embedder   ports.Embedder
	store      ports.ChunkStore
	cfg        RetrievalConfig
	onFallback func()
}

func NewRetrievalEngine(embedder ports.Embedder, store ports.ChunkStore, cfg RetrievalConfig) *RetrievalEngine {
	return &RetrievalEngine{
		embedder: embedder,
		store:    store,
		cfg:      cfg.normalize(),
	}
}

// SetFallbackHook registers a callback fired whenever the keyword
// fallback triggers. Used for metrics; nil disables it.
func (e *RetrievalEngine) SetFallbackHook(hook func()) {
	e.onFallback = hook
}

// Search returns ranked results for the search text under the given
// filter. Store failures propagate: an unreachable store must surface as
// a pipeline error, never as a silently empty answer.
func (e *RetrievalEngine) Search(ctx context.Context, searchText string, filter domain.SearchFilter) ([]domain.RetrievedChunk, error) {
	queryVector, err := e.embedder.EmbedQuery(ctx, searchText)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	semantic, err := e.store.VectorSearch(ctx, queryVector, filter, e.cfg.SearchLimit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "vector search", err)
	}

	// The inclusion floor applies after ranking, to cosine scores only.
	results := make([]domain.RetrievedChunk, 0, len(semantic))
	for _, hit := range semantic {
		if hit.Score >= e.cfg.MinSimilarity {
			results = append(results, hit)
		}
	}

	if !e.needsFallback(results) {
		return results, nil
	}

	if e.onFallback != nil {
		e.onFallback()
	}
	keyword, err := e.store.KeywordSearch(ctx, searchText, filter, e.cfg.KeywordLimit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "keyword search", err)
	}
	slog.Debug("retrieval_keyword_fallback",
		"semantic_hits", len(results),
		"keyword_hits", len(keyword),
	)

	seen := make(map[string]struct{}, len(results))
	for _, hit := range results {
		seen[hit.ChunkID] = struct{}{}
	}
	for _, hit := range keyword {
		if _, ok := seen[hit.ChunkID]; ok {
			continue
		}
		hit.Lexical = true
		results = append(results, hit)
		seen[hit.ChunkID] = struct{}{}
	}
	return results, nil
}

// needsFallback triggers the keyword search when there are no semantic
// hits or the best one scores below the confidence threshold. The trigger
// is unconditional under these conditions, never probabilistic.
func (e *RetrievalEngine) needsFallback(semantic []domain.RetrievedChunk) bool {
	if len(semantic) == 0 {
		return true
	}
	return semantic[0].Score < e.cfg.FallbackConfidence
}

// SelectSources walks results in rank order keeping at most one chunk per
// source until limit is reached. It returns fewer results when fewer
// distinct sources exist, never padding with duplicates.
func SelectSources(results []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 {
		limit = 8
	}

	selected := make([]domain.RetrievedChunk, 0, limit)
	seenSources := make(map[string]struct{}, limit)
	for _, result := range results {
		if _, ok := seenSources[result.SourceID]; ok {
			continue
		}
		seenSources[result.SourceID] = struct{}{}
		selected = append(selected, result)
		if len(selected) >= limit {
			break
		}
	}
	return selected
}

// truncateExcerpt keeps cited excerpts bounded for transport.
func truncateExcerpt(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
