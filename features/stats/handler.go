package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"docqa/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type TurnRepo interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	CountPassages(ctx context.Context) (int, error)
}

type Handler struct {
	documentRepo DocumentRepo
	turnRepo     TurnRepo
	jobRepo      JobRepo
	vectorStore  VectorStore
}

func NewHandler(d DocumentRepo, t TurnRepo, j JobRepo, v VectorStore) *Handler {
	return &Handler{documentRepo: d, turnRepo: t, jobRepo: j, vectorStore: v}
}

type StatsResponse struct {
	Documents  int `json:"documents"`
	Passages   int `json:"passages"`
	Turns      int `json:"turns"`
	FailedJobs int `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	dCount, err := h.documentRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	tCount, err := h.turnRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count turns", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count turns", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	// Passage count comes from the index. It degrades to zero so stats
	// remain available when the index is down.
	pCount, err := h.vectorStore.CountPassages(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to count passages", "error", err, "correlationId", correlationID)
		pCount = 0
	}

	resp := StatsResponse{
		Documents:  dCount,
		Passages:   pCount,
		Turns:      tCount,
		FailedJobs: jCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
