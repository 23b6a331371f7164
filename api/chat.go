package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lodestone-data/lodestone/internal/assistant"
	"github.com/lodestone-data/lodestone/internal/conversation"
	"github.com/lodestone-data/lodestone/internal/log"
)

// History pagination bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

var validate = validator.New()

// Assistant is the orchestration surface the API exposes.
type Assistant interface {
	Answer(ctx context.Context, tenantID, question, sessionID string) (*assistant.Result, error)
	RebuildIndex(ctx context.Context, tenantID string) (*assistant.IndexStats, error)
	IndexStatus(ctx context.Context, tenantID string) (*assistant.IndexStatus, error)
}

// ConversationReader reads stored chat history.
type ConversationReader interface {
	History(ctx context.Context, tenantID, sessionID string, limit int) ([]conversation.Turn, error)
}

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	assistant Assistant
	convs     ConversationReader
	logger    log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(a Assistant, convs ConversationReader, logger log.Logger) *ChatHandler {
	return &ChatHandler{assistant: a, convs: convs, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
	mux.HandleFunc("GET /api/chat/history", h.history)
}

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	Question  string `json:"question" validate:"required,min=1,max=4000"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

// ChatResponse is the POST /api/chat result.
type ChatResponse struct {
	Answer      string   `json:"answer"`
	QueryType   string   `json:"query_type"`
	SourcesUsed []string `json:"sources_used"`
	SessionID   string   `json:"session_id"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	result, err := h.assistant.Answer(r.Context(), TenantFromContext(r.Context()), req.Question, sessionID)
	if err != nil {
		h.logger.Error("answer pipeline failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:      result.Answer,
		QueryType:   result.QueryType,
		SourcesUsed: result.SourcesUsed,
		SessionID:   sessionID,
	})
}

// ChatMessage is one turn in a history response.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatHistoryResponse is the GET /api/chat/history result.
type ChatHistoryResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

func (h *ChatHandler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session_id query parameter is required")
		return
	}
	limit := parseIntParam(r, "limit", DefaultHistoryLimit, 1, MaxHistoryLimit)

	turns, err := h.convs.History(r.Context(), TenantFromContext(r.Context()), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load history", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}

	messages := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, ChatMessage{
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, ChatHistoryResponse{SessionID: sessionID, Messages: messages})
}
