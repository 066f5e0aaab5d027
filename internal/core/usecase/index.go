package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
	"github.com/muraho-rwanda/ai-guide/internal/core/ports"
)

// IndexEvent is the payload the CMS publishes when content is published
// or unpublished. Text arrives pre-extracted; splitting and embedding
// happen here.
type IndexEvent struct {
	Action      string             `json:"action"` // "index" or "unpublish"
	SourceID    string             `json:"source_id"`
	SourceType  domain.SourceType  `json:"source_type"`
	Language    string             `json:"language"`
	Sensitivity domain.Sensitivity `json:"sensitivity"`
	LocationID  string             `json:"location_id,omitempty"`
	MuseumID    string             `json:"museum_id,omitempty"`
	RouteID     string             `json:"route_id,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Text        string             `json:"text,omitempty"`
}

// IndexContentUseCase turns published content into embedded chunks.
// Chunk ids are derived from source id and chunk position, so re-indexing
// a source replaces its rows instead of duplicating them.
type IndexContentUseCase struct {
	chunker  ports.Chunker
	embedder ports.Embedder
	store    ports.ChunkStore
}

func NewIndexContentUseCase(chunker ports.Chunker, embedder ports.Embedder, store ports.ChunkStore) *IndexContentUseCase {
	return &IndexContentUseCase{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
	}
}

// Handle processes one queue message and returns the number of chunks
// affected. Malformed payloads are dropped with a log entry rather than
// retried forever.
func (uc *IndexContentUseCase) Handle(ctx context.Context, payload []byte) (int, error) {
	var event IndexEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		slog.Error("index_event_malformed", "error", err)
		return 0, nil
	}
	if strings.TrimSpace(event.SourceID) == "" {
		slog.Error("index_event_missing_source")
		return 0, nil
	}

	switch event.Action {
	case "unpublish":
		deleted, err := uc.store.DeleteBySource(ctx, event.SourceID)
		if err != nil {
			return 0, fmt.Errorf("delete source %s: %w", event.SourceID, err)
		}
		slog.Info("source_unpublished", "source_id", event.SourceID, "chunks_deleted", deleted)
		return deleted, nil
	case "index", "":
		return uc.index(ctx, event)
	default:
		slog.Warn("index_event_unknown_action", "action", event.Action)
		return 0, nil
	}
}

func (uc *IndexContentUseCase) index(ctx context.Context, event IndexEvent) (int, error) {
	pieces := uc.chunker.Split(event.Text)
	if len(pieces) == 0 {
		slog.Warn("index_event_empty_text", "source_id", event.SourceID)
		return 0, nil
	}

	vectors, err := uc.embedder.Embed(ctx, pieces, ports.RolePassage)
	if err != nil {
		return 0, fmt.Errorf("embed chunks for %s: %w", event.SourceID, err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embed chunks for %s: got %d vectors for %d chunks", event.SourceID, len(vectors), len(pieces))
	}

	language := event.Language
	if language == "" {
		language = "en"
	}
	sensitivity := event.Sensitivity
	if sensitivity == "" {
		sensitivity = domain.SensitivityStandard
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, text := range pieces {
		chunks = append(chunks, domain.Chunk{
			ChunkID:     fmt.Sprintf("%s:%d", event.SourceID, i),
			SourceID:    event.SourceID,
			SourceType:  event.SourceType,
			Language:    language,
			Sensitivity: sensitivity,
			LocationID:  event.LocationID,
			MuseumID:    event.MuseumID,
			RouteID:     event.RouteID,
			Tags:        event.Tags,
			Text:        text,
			Embedding:   vectors[i],
		})
	}

	stored, err := uc.store.UpsertChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("store chunks for %s: %w", event.SourceID, err)
	}
	slog.Info("source_indexed", "source_id", event.SourceID, "chunks", stored)
	return stored, nil
}
