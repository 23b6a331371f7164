// Package assistant orchestrates the answer pipeline: classify the question,
// assemble retrieval and live context, generate an answer, and persist the
// exchange.
//
// Collaborator failures during context assembly are logged and the affected
// block is omitted; no error in this package is fatal to a request. The
// worst outcome is a degraded answer.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lodestone-data/lodestone/internal/bronze"
	"github.com/lodestone-data/lodestone/internal/chunk"
	"github.com/lodestone-data/lodestone/internal/classify"
	"github.com/lodestone-data/lodestone/internal/conversation"
	"github.com/lodestone-data/lodestone/internal/llm"
	"github.com/lodestone-data/lodestone/internal/log"
	"github.com/lodestone-data/lodestone/internal/vecindex"
)

// Bounds on context assembly, matching the platform's latency budget.
const (
	defaultTopK         = 5
	defaultHistoryLimit = 10
	maxAuditSources     = 5
	maxRunsPerSource    = 5
)

const unavailableAnswer = "The AI assistant is not configured. " +
	"Please set LODESTONE_API_KEY in .env."

const systemPrompt = `You are the Data Platform Assistant, an AI helper for a metadata-driven data lakehouse built on the medallion architecture (Bronze, Silver, Gold).

You help users understand:

Bronze Layer (Raw Ingestion):
- Source configurations (YAML files that define data ingestion pipelines)
- Pipeline behavior (SCD2, CDC modes, schema evolution, quality checks)
- Operational data (run history, record counts, errors, dead letters)

Silver Layer (Cleaned & Conformed):
- Transformation rules, data quality validations, business logic
- Deduplication, standardization, enrichment joins
- Silver table lineage back to Bronze sources

Gold Layer (Curated & Aggregated):
- Star schemas, dimension/fact tables, KPI definitions
- Aggregation schedules, materialized views
- Reporting datasets and downstream consumers

General:
- Framework documentation (how to add sources, available adapters, architecture)
- Cross-layer data lineage and pipeline orchestration

Rules:
1. Answer based ONLY on the provided context. If the context doesn't contain the answer, say so clearly.
2. When referencing source configs, use the exact source names and settings.
3. For operational questions, cite specific numbers and timestamps from the data.
4. Keep answers concise and actionable.
5. If a question is about something outside this data platform, politely redirect.
6. Format responses in Markdown when helpful (tables, code blocks, bullet points).
7. NEVER fabricate source names, configurations, or operational data.
8. If Silver or Gold layer features are not yet available, let the user know they are coming soon and answer what you can from existing context.`

// VectorIndex is the retrieval surface the orchestrator needs.
type VectorIndex interface {
	QueryCombined(ctx context.Context, tenantID, text string, k int) ([]vecindex.Hit, error)
	Upsert(ctx context.Context, namespace string, docs []chunk.Doc) (int, error)
	Clear(ctx context.Context, namespace string) error
	Count(ctx context.Context, namespace string) (int, error)
}

// ConfigStore reads the YAML source configurations.
type ConfigStore interface {
	ListSources(ctx context.Context) ([]bronze.SourceSummary, error)
	GetSource(ctx context.Context, name string) (*bronze.SourceDetail, error)
}

// AuditStore reads the ingestion audit log.
type AuditStore interface {
	RecentRuns(ctx context.Context, sourceName, catalog string, limit int) ([]bronze.RunRecord, error)
}

// ConversationStore persists chat turns.
type ConversationStore interface {
	Append(ctx context.Context, tenantID, sessionID, role, content string) (uuid.UUID, error)
	History(ctx context.Context, tenantID, sessionID string, limit int) ([]conversation.Turn, error)
}

// Backend generates answers. A nil Backend means no model is configured and
// the pipeline short-circuits to a degraded response.
type Backend interface {
	Generate(ctx context.Context, systemPrompt string, turns []llm.Turn) (string, error)
}

// Result is the outcome of one answered question.
type Result struct {
	Answer      string   `json:"answer"`
	QueryType   string   `json:"query_type"`
	SourcesUsed []string `json:"sources_used"`
}

// IndexStats reports what a rebuild indexed.
type IndexStats struct {
	SharedDocs    int `json:"shared_docs"`
	SourceConfigs int `json:"source_configs"`
}

// IndexStatus reports current chunk counts per namespace.
type IndexStatus struct {
	SharedChunks int `json:"shared_chunks"`
	TenantChunks int `json:"tenant_chunks"`
}

// Service wires the collaborators into the answer pipeline. Requests are
// handled sequentially within a call; the Service itself is safe for
// concurrent use because all mutable state lives in the collaborators.
type Service struct {
	index        VectorIndex
	configs      ConfigStore
	audit        AuditStore
	convs        ConversationStore
	backend      Backend
	classifier   classify.Classifier
	docsDir      string
	topK         int
	historyLimit int
	logger       log.Logger
}

// Options tune the pipeline. Zero values fall back to defaults.
type Options struct {
	DocsDir      string
	TopK         int
	HistoryLimit int
}

// New creates a Service. backend may be nil when no API key is configured.
func New(
	index VectorIndex,
	configs ConfigStore,
	audit AuditStore,
	convs ConversationStore,
	backend Backend,
	classifier classify.Classifier,
	opts Options,
	logger log.Logger,
) *Service {
	if classifier == nil {
		classifier = classify.NewKeyword()
	}
	if opts.TopK < 1 {
		opts.TopK = defaultTopK
	}
	if opts.HistoryLimit < 1 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		index:        index,
		configs:      configs,
		audit:        audit,
		convs:        convs,
		backend:      backend,
		classifier:   classifier,
		docsDir:      opts.DocsDir,
		topK:         opts.TopK,
		historyLimit: opts.HistoryLimit,
		logger:       logger,
	}
}

// Available reports whether a model backend is configured.
func (s *Service) Available() bool {
	return s.backend != nil
}

// Answer runs the full pipeline for one question. When no backend is
// configured it returns a degraded result immediately without touching the
// conversation store.
func (s *Service) Answer(ctx context.Context, tenantID, question, sessionID string) (*Result, error) {
	if s.backend == nil {
		return &Result{
			Answer:      unavailableAnswer,
			QueryType:   string(classify.IntentError),
			SourcesUsed: []string{},
		}, nil
	}

	intent := s.classifier.Classify(question)

	var contextParts []string
	sourcesUsed := []string{}

	hits, err := s.index.QueryCombined(ctx, tenantID, question, s.topK)
	if err != nil {
		s.logger.Warn("vector retrieval failed, continuing without it",
			"tenant", tenantID, "error", err)
		hits = nil
	}
	if len(hits) > 0 {
		contextParts = append(contextParts, "=== Retrieved Documentation & Config Context ===")
		for _, hit := range hits {
			label := hit.Metadata[chunk.MetaSource]
			if label == "" {
				label = "unknown"
			}
			contextParts = append(contextParts, fmt.Sprintf("[Source: %s]\n%s\n", label, hit.Text))
			if !contains(sourcesUsed, label) {
				sourcesUsed = append(sourcesUsed, label)
			}
		}
	}

	if intent == classify.IntentOperational {
		opContext := s.operationalContext(ctx)
		contextParts = append(contextParts, "\n=== Live Operational Data ===\n"+opContext)
		sourcesUsed = append(sourcesUsed, "live_audit_data")
	}

	if intent == classify.IntentConfig {
		cfgContext := s.configContext(ctx)
		contextParts = append(contextParts, "\n=== Source Configuration Summary ===\n"+cfgContext)
		sourcesUsed = append(sourcesUsed, "source_configs")
	}

	fullContext := "No relevant context found."
	if len(contextParts) > 0 {
		fullContext = strings.Join(contextParts, "\n\n")
	}

	turns := s.historyTurns(ctx, tenantID, sessionID)
	turns = append(turns, llm.Turn{
		Role:    conversation.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", fullContext, question),
	})

	answer, err := s.backend.Generate(ctx, systemPrompt, turns)
	if err != nil {
		s.logger.Error("answer generation failed", "tenant", tenantID, "error", err)
		answer = fmt.Sprintf("I encountered an error generating a response: %v", err)
	}

	// A failed generation is still a recorded exchange: both turns are
	// persisted so the session stays consistent.
	s.persistTurn(ctx, tenantID, sessionID, conversation.RoleUser, question)
	s.persistTurn(ctx, tenantID, sessionID, conversation.RoleAssistant, answer)

	return &Result{
		Answer:      answer,
		QueryType:   string(intent),
		SourcesUsed: sourcesUsed,
	}, nil
}

// operationalContext renders the recent audit runs for up to maxAuditSources
// sources. Audit failures for one source drop that source's block only.
func (s *Service) operationalContext(ctx context.Context) string {
	sources, err := s.configs.ListSources(ctx)
	if err != nil {
		s.logger.Warn("failed to list sources for operational context", "error", err)
		return "No sources are currently configured."
	}
	if len(sources) == 0 {
		return "No sources are currently configured."
	}

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	parts := []string{
		fmt.Sprintf("There are %d configured sources: %s", len(sources), strings.Join(names, ", ")),
	}

	limit := len(sources)
	if limit > maxAuditSources {
		limit = maxAuditSources
	}
	for _, src := range sources[:limit] {
		detail, err := s.configs.GetSource(ctx, src.Name)
		if err != nil {
			s.logger.Warn("failed to load source for operational context",
				"source", src.Name, "error", err)
			continue
		}
		if detail.Target.Catalog == "" {
			continue
		}

		runs, err := s.audit.RecentRuns(ctx, src.Name, detail.Target.Catalog, maxRunsPerSource)
		if err != nil {
			s.logger.Warn("failed to fetch run history",
				"source", src.Name, "error", err)
			continue
		}
		if len(runs) == 0 {
			continue
		}

		parts = append(parts, fmt.Sprintf("\nRecent runs for '%s':", src.Name))
		for _, run := range runs {
			line := fmt.Sprintf("  - %s at %s: read=%d, written=%d, quarantined=%d",
				orDefault(run.Status, "UNKNOWN"), orDefault(run.StartTime, "N/A"),
				run.RecordsRead, run.RecordsWritten, run.RecordsQuarantined)
			if run.Error != "" {
				line += fmt.Sprintf(", error=%s", run.Error)
			}
			parts = append(parts, line)
		}
	}

	return strings.Join(parts, "\n")
}

// configContext renders a one-line summary of every configured source.
func (s *Service) configContext(ctx context.Context) string {
	sources, err := s.configs.ListSources(ctx)
	if err != nil {
		s.logger.Warn("failed to list sources for config context", "error", err)
		return "No sources are currently configured."
	}
	if len(sources) == 0 {
		return "No sources are currently configured."
	}

	lines := []string{fmt.Sprintf("Configured sources (%d total):", len(sources))}
	for _, src := range sources {
		lines = append(lines, fmt.Sprintf("  - %s: type=%s, table=%s, cdc=%s, load=%s, enabled=%t",
			src.Name, src.Type, src.TargetTable, src.CDCMode, src.LoadType, src.Enabled))
	}
	return strings.Join(lines, "\n")
}

// historyTurns loads prior session turns oldest-first. History failures
// degrade to an empty history rather than failing the request.
func (s *Service) historyTurns(ctx context.Context, tenantID, sessionID string) []llm.Turn {
	history, err := s.convs.History(ctx, tenantID, sessionID, s.historyLimit)
	if err != nil {
		s.logger.Warn("failed to load conversation history",
			"tenant", tenantID, "session", sessionID, "error", err)
		return nil
	}

	turns := make([]llm.Turn, 0, len(history)+1)
	for _, t := range history {
		turns = append(turns, llm.Turn{Role: t.Role, Content: t.Content})
	}
	return turns
}

func (s *Service) persistTurn(ctx context.Context, tenantID, sessionID, role, content string) {
	if _, err := s.convs.Append(ctx, tenantID, sessionID, role, content); err != nil {
		s.logger.Error("failed to persist turn",
			"tenant", tenantID, "session", sessionID, "role", role, "error", err)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
