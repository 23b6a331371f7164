// Package vecindex provides the namespaced vector index over PostgreSQL +
// pgvector.
//
// Two namespace kinds exist: the shared namespace holds framework
// documentation read by all tenants, and each tenant has one namespace for
// its own source-config chunks. Similarity uses cosine distance, so lower
// distance means more relevant.
package vecindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/lodestone-data/lodestone/internal/chunk"
	"github.com/lodestone-data/lodestone/internal/log"
)

// ErrNoEmbedder is returned by operations that need embeddings when no
// embedding backend is configured.
var ErrNoEmbedder = errors.New("vecindex: no embedder configured")

// SharedNamespace holds framework documentation visible to every tenant.
const SharedNamespace = "shared_docs"

// TenantNamespace returns the per-tenant namespace for source-config chunks.
func TenantNamespace(tenantID string) string {
	return fmt.Sprintf("tenant_%s_sources", tenantID)
}

// Hit is one retrieval result. Produced transiently by a query, never
// persisted.
type Hit struct {
	Text     string
	Metadata map[string]string
	Distance float64
}

// Embedder turns texts into embedding vectors. Implementations must be safe
// for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DB is the subset of pgxpool.Pool the store needs. Consumer-defined so
// tests can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages doc chunks with vector search, partitioned by namespace.
// Reads are safe for concurrent use; upserts and clears against the same
// namespace are expected to be serialized by the caller (rebuilds are
// tenant-triggered and rare).
type Store struct {
	db       DB
	embedder Embedder
	logger   log.Logger
}

// New creates a Store. A nil logger falls back to a no-op logger.
func New(db DB, embedder Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// Upsert embeds and writes the given chunks into a namespace. Re-upserting
// an existing id replaces content, metadata, and embedding, making rebuilds
// idempotent. Returns the number of chunks written.
func (s *Store) Upsert(ctx context.Context, namespace string, docs []chunk.Doc) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if s.embedder == nil {
		return 0, ErrNoEmbedder
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed %d chunks: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
	}

	for i, d := range docs {
		metadata, err := json.Marshal(d.Metadata)
		if err != nil {
			return i, fmt.Errorf("failed to marshal metadata for chunk %q: %w", d.ID, err)
		}
		embedding := pgvector.NewVector(vectors[i])

		_, err = s.db.Exec(ctx, `
			INSERT INTO doc_chunks (namespace, id, content, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (namespace, id) DO UPDATE
			SET content = EXCLUDED.content,
			    metadata = EXCLUDED.metadata,
			    embedding = EXCLUDED.embedding,
			    updated_at = now()`,
			namespace, d.ID, d.Text, metadata, embedding)
		if err != nil {
			return i, fmt.Errorf("failed to upsert chunk %q: %w", d.ID, err)
		}
	}

	s.logger.Debug("upserted chunks", "namespace", namespace, "count", len(docs))
	return len(docs), nil
}

// Query returns up to k hits from one namespace ordered by ascending cosine
// distance. An empty or absent namespace yields an empty slice, not an
// error.
func (s *Store) Query(ctx context.Context, namespace, text string, k int) ([]Hit, error) {
	if k < 1 {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	queryVec := pgvector.NewVector(vectors[0])

	rows, err := s.db.Query(ctx, `
		SELECT content, metadata, embedding <=> $1 AS distance
		FROM doc_chunks
		WHERE namespace = $2
		ORDER BY distance
		LIMIT $3`,
		queryVec, namespace, k)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			content  string
			metaJSON []byte
			distance float64
		)
		if err := rows.Scan(&content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}

		var metadata map[string]string
		if err := json.Unmarshal(metaJSON, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "namespace", namespace, "error", err)
			metadata = make(map[string]string)
		}
		hits = append(hits, Hit{Text: content, Metadata: metadata, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	return hits, nil
}

// QueryCombined queries the tenant namespace and the shared namespace,
// merges the hit lists by ascending distance, and truncates to k. Equal
// distances keep their per-namespace order with tenant hits first, since the
// tenant namespace is queried first.
func (s *Store) QueryCombined(ctx context.Context, tenantID, text string, k int) ([]Hit, error) {
	tenantHits, err := s.Query(ctx, TenantNamespace(tenantID), text, k)
	if err != nil {
		return nil, err
	}
	sharedHits, err := s.Query(ctx, SharedNamespace, text, k)
	if err != nil {
		return nil, err
	}
	return mergeHits(tenantHits, sharedHits, k), nil
}

// Clear deletes all chunks in a namespace. Clearing an absent namespace is a
// no-op, not an error.
func (s *Store) Clear(ctx context.Context, namespace string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM doc_chunks WHERE namespace = $1`, namespace)
	if err != nil {
		return fmt.Errorf("failed to clear namespace %q: %w", namespace, err)
	}
	s.logger.Debug("cleared namespace", "namespace", namespace, "deleted", tag.RowsAffected())
	return nil
}

// Count returns the number of chunks in a namespace, 0 when absent.
func (s *Store) Count(ctx context.Context, namespace string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM doc_chunks WHERE namespace = $1`, namespace).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count namespace %q: %w", namespace, err)
	}
	return count, nil
}

// mergeHits merges two pre-sorted hit lists by ascending distance and
// truncates to k. The sort is stable, so ties preserve input order (a hits
// before b hits).
func mergeHits(a, b []Hit, k int) []Hit {
	merged := make([]Hit, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Distance < merged[j].Distance
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}
