package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/lodestone-data/lodestone/internal/bronze"
	"github.com/lodestone-data/lodestone/internal/log"
)

// Run history pagination bounds.
const (
	DefaultRunsLimit = 10
	MaxRunsLimit     = 100
)

// ConfigStore reads the YAML source configurations.
type ConfigStore interface {
	ListSources(ctx context.Context) ([]bronze.SourceSummary, error)
	GetSource(ctx context.Context, name string) (*bronze.SourceDetail, error)
}

// AuditStore reads the ingestion audit log.
type AuditStore interface {
	RecentRuns(ctx context.Context, sourceName, catalog string, limit int) ([]bronze.RunRecord, error)
}

// SourcesHandler exposes the configured sources and their run history.
type SourcesHandler struct {
	configs ConfigStore
	audit   AuditStore
	logger  log.Logger
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(configs ConfigStore, audit AuditStore, logger log.Logger) *SourcesHandler {
	return &SourcesHandler{configs: configs, audit: audit, logger: logger}
}

// RegisterRoutes registers source routes on the given mux.
func (h *SourcesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sources", h.list)
	mux.HandleFunc("GET /api/sources/{name}/runs", h.runs)
}

// SourceSummary is the list-level source view returned by the API.
type SourceSummary struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	TargetTable string `json:"target_table"`
	CDCMode     string `json:"cdc_mode"`
	LoadType    string `json:"load_type"`
	Schedule    string `json:"schedule,omitempty"`
}

func (h *SourcesHandler) list(w http.ResponseWriter, r *http.Request) {
	sources, err := h.configs.ListSources(r.Context())
	if err != nil {
		h.logger.Error("failed to list sources", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sources")
		return
	}

	out := make([]SourceSummary, 0, len(sources))
	for _, s := range sources {
		out = append(out, SourceSummary{
			Name:        s.Name,
			Type:        string(s.Type),
			Description: s.Description,
			Enabled:     s.Enabled,
			TargetTable: s.TargetTable,
			CDCMode:     string(s.CDCMode),
			LoadType:    string(s.LoadType),
			Schedule:    s.Schedule,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": out,
		"total":   len(out),
	})
}

// RunRecord is one audit log row returned by the API.
type RunRecord struct {
	Status             string `json:"status"`
	StartTime          string `json:"start_time,omitempty"`
	EndTime            string `json:"end_time,omitempty"`
	RecordsRead        int64  `json:"records_read"`
	RecordsWritten     int64  `json:"records_written"`
	RecordsQuarantined int64  `json:"records_quarantined"`
	Error              string `json:"error,omitempty"`
}

func (h *SourcesHandler) runs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	limit := parseIntParam(r, "limit", DefaultRunsLimit, 1, MaxRunsLimit)

	detail, err := h.configs.GetSource(r.Context(), name)
	if errors.Is(err, bronze.ErrSourceNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "source not found: "+name)
		return
	}
	if err != nil {
		h.logger.Error("failed to load source", "source", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load source")
		return
	}
	if detail.Target.Catalog == "" {
		writeError(w, http.StatusUnprocessableEntity, "no_catalog",
			"source has no target catalog; run history is unavailable")
		return
	}

	runs, err := h.audit.RecentRuns(r.Context(), name, detail.Target.Catalog, limit)
	if errors.Is(err, bronze.ErrWarehouseUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "warehouse_unavailable",
			"warehouse credentials are not configured")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch run history", "source", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch run history")
		return
	}

	out := make([]RunRecord, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunRecord{
			Status:             run.Status,
			StartTime:          run.StartTime,
			EndTime:            run.EndTime,
			RecordsRead:        run.RecordsRead,
			RecordsWritten:     run.RecordsWritten,
			RecordsQuarantined: run.RecordsQuarantined,
			Error:              run.Error,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source": name,
		"runs":   out,
		"total":  len(out),
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
