package api

import (
	"net/http"

	"github.com/lodestone-data/lodestone/internal/log"
)

// IndexHandler handles index maintenance endpoints.
type IndexHandler struct {
	assistant Assistant
	logger    log.Logger
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(a Assistant, logger log.Logger) *IndexHandler {
	return &IndexHandler{assistant: a, logger: logger}
}

// RegisterRoutes registers index routes on the given mux.
func (h *IndexHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/index/rebuild", h.rebuild)
	mux.HandleFunc("GET /api/index/status", h.status)
}

// rebuild re-indexes shared docs and the caller's source configs. The
// rebuild is synchronous; it is a manual, infrequent operation.
func (h *IndexHandler) rebuild(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	stats, err := h.assistant.RebuildIndex(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("index rebuild failed", "tenant", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "index rebuild failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *IndexHandler) status(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantFromContext(r.Context())

	status, err := h.assistant.IndexStatus(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("index status failed", "tenant", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read index status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
