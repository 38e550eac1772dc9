package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"docqa/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

// Ask answers a question. Pipeline failures still produce HTTP 200 with a
// structured error answer; only malformed requests get an error status.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "INVALID_REQUEST", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(ctx, w, "INVALID_REQUEST", "question is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	slog.InfoContext(ctx, "answering question", "session_id", req.SessionID, "correlationId", correlationID)

	result, err := h.service.Ask(ctx, req.SessionID, req.Question)
	if err != nil {
		slog.ErrorContext(ctx, "ask pipeline returned error", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": result}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

type rateRequest struct {
	Rating int `json:"rating"`
}

// Rate records feedback for a turn. Unknown turn IDs succeed silently.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	id := r.PathValue("id")

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "INVALID_REQUEST", "Invalid JSON body", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "rating turn", "turn_id", id, "rating", req.Rating, "correlationId", correlationID)

	if err := h.service.Rate(ctx, id, req.Rating); err != nil {
		slog.ErrorContext(ctx, "failed to record rating", "turn_id", id, "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// History lists every turn in a session, oldest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	sessionID := r.PathValue("id")

	turns, err := h.service.Turns(ctx, sessionID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list turns", "session_id", sessionID, "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if turns == nil {
		turns = []Turn{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": turns,
		"meta": map[string]int{"count": len(turns)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
