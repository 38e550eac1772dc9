package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"docqa/features/job"
	"docqa/internal/index"
	"docqa/internal/middleware"
)

// Ingester runs the ingestion pipeline for a single document.
type Ingester interface {
	Ingest(ctx context.Context, name, content string, totalPages int) (int, error)
}

// IngestConsumer handles queued documents. Only index unavailability is
// requeued; every other failure is parked as a failed job so the queue
// never loops on a poison message.
type IngestConsumer struct {
	ingester Ingester
	jobRepo  job.Repository
}

func NewIngestConsumer(ingester Ingester, jobRepo job.Repository) *IngestConsumer {
	return &IngestConsumer{ingester: ingester, jobRepo: jobRepo}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestDocumentPayload
	err := json.Unmarshal(m.Body, &payload)

	correlationID := payload.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if err != nil {
		slog.ErrorContext(ctx, "invalid message format, dropping", "error", err)
		return nil
	}
	if payload.Name == "" || payload.Content == "" {
		slog.ErrorContext(ctx, "missing required fields, dropping", "document", payload.Name)
		return nil
	}

	slog.InfoContext(ctx, "ingesting document", "document", payload.Name, "byte_size", payload.ByteSize)

	count, err := h.ingester.Ingest(ctx, payload.Name, payload.Content, payload.TotalPages)
	if err != nil {
		if errors.Is(err, ErrAlreadyIngested) {
			slog.InfoContext(ctx, "document already ingested, dropping", "document", payload.Name)
			return nil
		}
		if errors.Is(err, index.ErrIndexUnavailable) {
			slog.WarnContext(ctx, "vector index unavailable, requeueing", "document", payload.Name)
			return err
		}

		slog.ErrorContext(ctx, "ingestion failed, parking job", "document", payload.Name, "error", err)
		failed := &job.Job{
			DocumentName: payload.Name,
			Handler:      "ingest_document",
			Payload:      json.RawMessage(m.Body),
			Error:        err.Error(),
		}
		if saveErr := h.jobRepo.Save(ctx, failed); saveErr != nil {
			slog.ErrorContext(ctx, "failed to save failed job", "error", saveErr)
		}
		return nil
	}

	slog.InfoContext(ctx, "document ingested", "document", payload.Name, "segments", count)
	return nil
}
