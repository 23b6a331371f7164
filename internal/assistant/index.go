package assistant

import (
	"context"
	"fmt"

	"github.com/lodestone-data/lodestone/internal/chunk"
	"github.com/lodestone-data/lodestone/internal/vecindex"
)

// RebuildIndex re-indexes the shared framework docs and the tenant's source
// configs. The shared namespace is upserted additively; the tenant namespace
// is cleared first, so deleted sources disappear from retrieval. A tenant
// with zero sources ends with an empty tenant namespace and an untouched
// shared namespace.
func (s *Service) RebuildIndex(ctx context.Context, tenantID string) (*IndexStats, error) {
	stats := &IndexStats{}

	docs, err := chunk.LoadDocs(s.docsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load framework docs: %w", err)
	}
	stats.SharedDocs, err = s.index.Upsert(ctx, vecindex.SharedNamespace, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to index shared docs: %w", err)
	}

	sourceDocs, err := s.sourceDocs(ctx)
	if err != nil {
		return nil, err
	}

	tenantNS := vecindex.TenantNamespace(tenantID)
	if err := s.index.Clear(ctx, tenantNS); err != nil {
		return nil, fmt.Errorf("failed to clear tenant namespace: %w", err)
	}
	stats.SourceConfigs, err = s.index.Upsert(ctx, tenantNS, sourceDocs)
	if err != nil {
		return nil, fmt.Errorf("failed to index source configs: %w", err)
	}

	s.logger.Info("index rebuilt",
		"tenant", tenantID,
		"shared_docs", stats.SharedDocs,
		"source_configs", stats.SourceConfigs)
	return stats, nil
}

// IndexStatus reports chunk counts for the shared and tenant namespaces.
func (s *Service) IndexStatus(ctx context.Context, tenantID string) (*IndexStatus, error) {
	shared, err := s.index.Count(ctx, vecindex.SharedNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to count shared namespace: %w", err)
	}
	tenantChunks, err := s.index.Count(ctx, vecindex.TenantNamespace(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to count tenant namespace: %w", err)
	}
	return &IndexStatus{SharedChunks: shared, TenantChunks: tenantChunks}, nil
}

// sourceDocs chunks every configured source into its two retrieval docs.
func (s *Service) sourceDocs(ctx context.Context) ([]chunk.Doc, error) {
	sources, err := s.configs.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	var docs []chunk.Doc
	for _, src := range sources {
		detail, err := s.configs.GetSource(ctx, src.Name)
		if err != nil {
			s.logger.Warn("skipping source during indexing", "source", src.Name, "error", err)
			continue
		}
		docs = append(docs, chunk.SourceDocs(detail)...)
	}
	return docs, nil
}
