package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
)

type embedderFake struct {
	queryErr error
}

func (f *embedderFake) Embed(context.Context, []string, ports.EmbeddingRole) ([][]float32, error) {
	return nil, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type storeFake struct {
	semantic []domain.RetrievedChunk
	keyword  []domain.RetrievedChunk

	semanticErr error
	keywordErr  error
	upsertErr   error

	keywordCalled bool
	vectorLimit   int
	keywordLimit  int
	filter        domain.SearchFilter

	upserted      []domain.Chunk
	deletedSource string
	deleteCount   int
}

func (f *storeFake) UpsertChunks(_ context.Context, chunks []domain.Chunk) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, chunks...)
	return len(chunks), nil
}

func (f *storeFake) VectorSearch(_ context.Context, _ []float32, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error) {
	f.filter = filter
	f.vectorLimit = limit
	return f.semantic, f.semanticErr
}

func (f *storeFake) KeywordSearch(_ context.Context, _ string, _ domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error) {
	f.keywordCalled = true
	f.keywordLimit = limit
	return f.keyword, f.keywordErr
}

func (f *storeFake) DeleteBySource(_ context.Context, sourceID string) (int, error) {
	f.deletedSource = sourceID
	return f.deleteCount, nil
}

func chunk(id, source string, score float64) domain.RetrievedChunk {
	return domain.RetrievedChunk{ChunkID: id, SourceID: source, Text: "text " + id, Score: score}
}

func TestSearchStrongSemanticSkipsFallback(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{
		chunk("c1", "s1", 0.82),
		chunk("c2", "s2", 0.61),
	}}
	engine := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})

	results, err := engine.Search(context.Background(), "memorial history", domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if store.keywordCalled {
		t.Fatalf("fallback must not trigger for a strong top hit")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if store.vectorLimit != 20 {
		t.Fatalf("expected default search limit 20, got %d", store.vectorLimit)
	}
}

func TestSearchFiltersBelowSimilarityFloor(t *testing.T) {
	store := &storeFake{semantic: []domain.RetrievedChunk{
		chunk("c1", "s1", 0.9),
		chunk("c2", "s2", 0.29),
		chunk("c3", "s3", 0.1),
	}}
	engine := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})

	results, err := engine.Search(context.Background(), "memorial", domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c1" {
		t.Fatalf("expected only c1 above the floor, got %+v", results)
	}
}

func TestSearchLowConfidenceTriggersKeywordFallback(t *testing.T) {
	store := &storeFake{
		semantic: []domain.RetrievedChunk{chunk("c1", "s1", 0.45)},
		keyword:  []domain.RetrievedChunk{chunk("k1", "s2", 0.2)},
	}
	engine := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})

	fallbackFired := false
	engine.SetFallbackHook(func() { fallbackFired = true })

	results, err := engine.Search(context.Background(), "murambi", domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !store.keywordCalled || !fallbackFired {
		t.Fatalf("expected keyword fallback for top score below 0.5")
	}
	if len(results) != 2 {
		t.Fatalf("expected merged results, got %d", len(results))
	}
	if !results[1].Lexical {
		t.Fatalf("keyword results must be marked lexical")
	}
	if store.keywordLimit != 10 {
		t.Fatalf("expected keyword limit 10, got %d", store.keywordLimit)
	}
}

func TestSearchEmptySemanticTriggersFallback(t *testing.T) {
	store := &storeFake{keyword: []domain.RetrievedChunk{chunk("k1", "s1", 0.15)}}
	engine := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})

	results, err := engine.Search(context.Background(), "ibisigo", domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !store.keywordCalled {
		t.Fatalf("expected keyword fallback for empty semantic results")
	}
	// Trigram scores live on their own scale; the cosine floor does not
	// re-filter them.
	if len(results) != 1 {
		t.Fatalf("expected keyword result kept, got %d", len(results))
	}
}

func TestSearchFallbackDeduplicatesByChunkID(t *testing.T) {
	store := &storeFake{
		semantic: []domain.RetrievedChunk{chunk("c1", "s1", 0.4)},
		keyword: []domain.RetrievedChunk{
			chunk("c1", "s1", 0.3),
			chunk("k2", "s2", 0.25),
		},
	}
	engine := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})

	results, err := engine.Search(context.Background(), "testimony", domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 deduplicated results, got %d", len(results))
	}
	if results[0].Lexical {
		t.Fatalf("semantic hit must keep precedence over its keyword duplicate")
	}
}

func TestSearchEmbedErrorWrapped(t *testing.T) {
	engine := NewRetrievalEngine(&embedderFake{queryErr: errors.New("embed down")}, &storeFake{}, RetrievalConfig{})

	_, err := engine.Search(context.Background(), "q", domain.SearchFilter{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestSearchStoreErrorWrapped(t *testing.T) {
	store := &storeFake{semanticErr: errors.New("pg down")}
	engine := NewRetrievalEngine(&embedderFake{}, store, RetrievalConfig{})

	_, err := engine.Search(context.Background(), "q", domain.SearchFilter{})
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
}

func TestSelectSourcesOnePerSource(t *testing.T) {
	results := []domain.RetrievedChunk{
		chunk("c1", "story-1", 0.9),
		chunk("c2", "story-1", 0.85),
		chunk("c3", "testimony-2", 0.8),
		chunk("c4", "story-1", 0.75),
		chunk("c5", "panel-3", 0.7),
	}

	selected := SelectSources(results, 8)
	if len(selected) != 3 {
		t.Fatalf("expected 3 distinct sources, got %d", len(selected))
	}
	if selected[0].ChunkID != "c1" || selected[1].ChunkID != "c3" || selected[2].ChunkID != "c5" {
		t.Fatalf("expected best chunk per source in rank order, got %+v", selected)
	}
}

func TestSelectSourcesHonorsLimit(t *testing.T) {
	var results []domain.RetrievedChunk
	for i := 0; i < 12; i++ {
		results = append(results, chunk(
			string(rune('a'+i)),
			"source-"+string(rune('a'+i)),
			1.0-float64(i)*0.05,
		))
	}

	selected := SelectSources(results, 8)
	if len(selected) != 8 {
		t.Fatalf("expected 8 selected sources, got %d", len(selected))
	}
}

func TestSelectSourcesFewerThanLimit(t *testing.T) {
	selected := SelectSources([]domain.RetrievedChunk{chunk("c1", "s1", 0.9)}, 8)
	if len(selected) != 1 {
		t.Fatalf("expected 1, got %d", len(selected))
	}
}
