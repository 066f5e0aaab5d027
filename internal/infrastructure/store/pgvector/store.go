// Package pgvector persists content chunks in Postgres and serves both
// retrieval paths: cosine search over pgvector embeddings and trigram
// keyword search over the raw text.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
)

type Store struct {
	db    *sql.DB
	table string
	dim   int
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func New(db *sql.DB, table string, dim int) *Store {
	return &Store{db: db, table: table, dim: dim}
}

// EnsureSchema creates the extensions, table and indexes. The advisory
// lock serializes concurrent starts of api and worker against the same
// database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(0x6d757268)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id     TEXT PRIMARY KEY,
			source_id    TEXT NOT NULL,
			source_type  TEXT NOT NULL,
			language     TEXT NOT NULL,
			sensitivity  TEXT NOT NULL,
			location_id  TEXT NOT NULL DEFAULT '',
			museum_id    TEXT NOT NULL DEFAULT '',
			route_id     TEXT NOT NULL DEFAULT '',
			tags         TEXT[] NOT NULL DEFAULT '{}',
			text_content TEXT NOT NULL,
			embedding    vector(%d) NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_text_trgm_idx ON %[1]s USING gin (text_content gin_trgm_ops)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_source_idx ON %[1]s (source_id)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_meta_idx ON %[1]s (source_type, sensitivity, language)`, s.table),
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return tx.Commit()
}

// UpsertChunks writes chunks in one transaction. ChunkID is the conflict
// key, so re-indexing a source replaces its rows in place.
func (s *Store) UpsertChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO %s
		(chunk_id, source_id, source_type, language, sensitivity, location_id, museum_id, route_id, tags, text_content, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (chunk_id) DO UPDATE SET
			source_type = EXCLUDED.source_type,
			language = EXCLUDED.language,
			sensitivity = EXCLUDED.sensitivity,
			location_id = EXCLUDED.location_id,
			museum_id = EXCLUDED.museum_id,
			route_id = EXCLUDED.route_id,
			tags = EXCLUDED.tags,
			text_content = EXCLUDED.text_content,
			embedding = EXCLUDED.embedding,
			updated_at = now()`, s.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		tags := chunk.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ChunkID,
			chunk.SourceID,
			string(chunk.SourceType),
			chunk.Language,
			string(chunk.Sensitivity),
			chunk.LocationID,
			chunk.MuseumID,
			chunk.RouteID,
			encodeTags(tags),
			chunk.Text,
			pgvec.NewVector(chunk.Embedding),
		); err != nil {
			return 0, fmt.Errorf("upsert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return len(chunks), nil
}

// VectorSearch ranks chunks by cosine similarity to the query embedding.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error) {
	where, args := buildFilterClause(filter, 2)
	query := fmt.Sprintf(`SELECT chunk_id, source_id, source_type, text_content, language, sensitivity,
			1 - (embedding <=> $1) AS similarity
		FROM %s%s
		ORDER BY embedding <=> $1
		LIMIT %d`, s.table, where, limit)

	args = append([]any{pgvec.NewVector(embedding)}, args...)
	return s.queryChunks(ctx, query, args, false)
}

// KeywordSearch ranks chunks by trigram similarity of the raw text. It is
// the fallback path when semantic scores are weak; trigram scores live on
// their own scale and are not comparable to cosine similarity.
func (s *Store) KeywordSearch(ctx context.Context, text string, filter domain.SearchFilter, limit int) ([]domain.RetrievedChunk, error) {
	where, args := buildFilterClause(filter, 2)
	if where == "" {
		where = " WHERE text_content % $1"
	} else {
		where += " AND text_content % $1"
	}
	query := fmt.Sprintf(`SELECT chunk_id, source_id, source_type, text_content, language, sensitivity,
			similarity(text_content, $1) AS score
		FROM %s%s
		ORDER BY score DESC
		LIMIT %d`, s.table, where, limit)

	args = append([]any{text}, args...)
	return s.queryChunks(ctx, query, args, true)
}

func (s *Store) DeleteBySource(ctx context.Context, sourceID string) (int, error) {
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE source_id = $1`, s.table), sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete source %s: %w", sourceID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete source %s: %w", sourceID, err)
	}
	return int(affected), nil
}

func (s *Store) queryChunks(ctx context.Context, query string, args []any, lexical bool) ([]domain.RetrievedChunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievedChunk
	for rows.Next() {
		var chunk domain.RetrievedChunk
		var sourceType, sensitivity string
		if err := rows.Scan(&chunk.ChunkID, &chunk.SourceID, &sourceType, &chunk.Text, &chunk.Language, &sensitivity, &chunk.Score); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunk.SourceType = domain.SourceType(sourceType)
		chunk.Sensitivity = domain.Sensitivity(sensitivity)
		chunk.Lexical = lexical
		results = append(results, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return results, nil
}

// buildFilterClause renders the WHERE clause for a search filter, with
// placeholders starting at startIdx.
func buildFilterClause(filter domain.SearchFilter, startIdx int) (string, []any) {
	var conditions []string
	var args []any
	next := startIdx

	add := func(condition string, value any) {
		conditions = append(conditions, fmt.Sprintf(condition, next))
		args = append(args, value)
		next++
	}

	if filter.SensitivityCeiling != "" {
		allowed := domain.AllowedUpTo(filter.SensitivityCeiling)
		tiers := make([]string, 0, len(allowed))
		for _, tier := range allowed {
			tiers = append(tiers, string(tier))
		}
		add("sensitivity = ANY(string_to_array($%d, ','))", strings.Join(tiers, ","))
	}
	if filter.SourceType != "" {
		add("source_type = $%d", string(filter.SourceType))
	}
	if filter.Language != "" {
		add("language = $%d", filter.Language)
	}
	if filter.LocationID != "" {
		add("location_id = $%d", filter.LocationID)
	}
	if filter.MuseumID != "" {
		add("museum_id = $%d", filter.MuseumID)
	}
	if filter.RouteID != "" {
		add("route_id = $%d", filter.RouteID)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// encodeTags renders a Postgres text[] literal. Tags are slugs from the
// CMS; commas and braces are stripped rather than escaped.
func encodeTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.NewReplacer(",", "", "{", "", "}", "", `"`, "").Replace(tag)
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return "{" + strings.Join(cleaned, ",") + "}"
}
