package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"docqa/internal/index"
	"docqa/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	TotalPages int    `json:"total_pages"`
}

// Submit queues a document for ingestion. Duplicate submissions return 200
// without queueing anything.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "name is required", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "content is required", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "document submitted", "name", req.Name, "correlationId", correlationID)

	if err := h.service.Submit(ctx, req.Name, req.Content, req.TotalPages); err != nil {
		if errors.Is(err, ErrDuplicate) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "document already ingested"}); err != nil {
				slog.ErrorContext(ctx, "failed to encode response", "error", err)
			}
			return
		}
		slog.ErrorContext(ctx, "failed to queue document", "name", req.Name, "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "document queued"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")

	slog.InfoContext(ctx, "deleting document", "name", name)

	if err := h.service.Delete(ctx, name); err != nil {
		slog.ErrorContext(ctx, "failed to delete document", "name", name, "error", err)
		if errors.Is(err, index.ErrIndexUnavailable) {
			h.writeError(ctx, w, "INDEX_UNAVAILABLE", "Vector index unavailable", http.StatusServiceUnavailable)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
