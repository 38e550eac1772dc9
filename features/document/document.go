package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docqa/internal/config"
	"docqa/internal/index"
	"docqa/internal/middleware"
	"docqa/internal/text"
	"docqa/internal/worker"
)

// ErrDuplicate marks a submission whose (name, byte size) pair was already
// ingested. Callers treat it as an idempotent no-op, not a failure.
var ErrDuplicate = worker.ErrAlreadyIngested

// Document is one ingestion ledger entry. Identity is the (Name, ByteSize)
// pair: re-uploading the same file is a no-op, a changed file re-indexes.
type Document struct {
	Name         string    `json:"name"`
	ByteSize     int       `json:"byte_size"`
	TotalPages   int       `json:"total_pages"`
	SegmentCount int       `json:"segment_count"`
	IngestedAt   time.Time `json:"ingested_at"`
}

type Repository interface {
	Exists(ctx context.Context, name string, byteSize int) (bool, error)
	Record(ctx context.Context, doc *Document) error
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, name string) error
	Count(ctx context.Context) (int, error)
}

type Indexer interface {
	Index(ctx context.Context, documentName string, byteSize int, segments []text.Segment) (int, error)
}

type PassageStore interface {
	DeletePassagesByDocument(ctx context.Context, documentName string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo      Repository
	pub       EventPublisher
	indexer   Indexer
	passages  PassageStore
	splitOpts text.SplitOptions

	// processed guards against a duplicate re-delivery racing ahead of the
	// ledger write within one process.
	mu        sync.Mutex
	processed map[string]struct{}
}

func NewService(repo Repository, pub EventPublisher, indexer Indexer, passages PassageStore, splitOpts text.SplitOptions) *Service {
	return &Service{
		repo:      repo,
		pub:       pub,
		indexer:   indexer,
		passages:  passages,
		splitOpts: splitOpts,
		processed: make(map[string]struct{}),
	}
}

// Submit accepts a document over the API and hands it to the ingestion
// worker through the queue. The ledger is only written once the worker
// finishes indexing.
func (s *Service) Submit(ctx context.Context, name, content string, totalPages int) error {
	byteSize := len(content)

	exists, err := s.repo.Exists(ctx, name, byteSize)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}

	payload, err := json.Marshal(worker.IngestDocumentPayload{
		Name:          name,
		ByteSize:      byteSize,
		Content:       content,
		TotalPages:    totalPages,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return fmt.Errorf("marshal ingest payload: %w", err)
	}

	if err := s.pub.Publish(config.TopicIngestDocument, payload); err != nil {
		return fmt.Errorf("publish ingest event: %w", err)
	}

	slog.InfoContext(ctx, "published ingest event", "document", name, "byte_size", byteSize)
	return nil
}

// Ingest runs the full pipeline for one document: ledger check, segmenting,
// indexing, ledger record. Returns the number of indexed segments, or 0
// with ErrDuplicate when the document was already processed.
func (s *Service) Ingest(ctx context.Context, name, content string, totalPages int) (int, error) {
	byteSize := len(content)
	key := fmt.Sprintf("%s|%d", name, byteSize)

	s.mu.Lock()
	if _, done := s.processed[key]; done {
		s.mu.Unlock()
		return 0, ErrDuplicate
	}
	s.mu.Unlock()

	exists, err := s.repo.Exists(ctx, name, byteSize)
	if err != nil {
		slog.WarnContext(ctx, "ledger lookup failed, proceeding with ingestion", "document", name, "error", err)
	}
	if exists {
		return 0, ErrDuplicate
	}

	segments := text.Split(name, content, totalPages, s.splitOpts)
	if len(segments) == 0 {
		slog.WarnContext(ctx, "document produced no segments", "document", name)
	}

	count, err := s.indexer.Index(ctx, name, byteSize, segments)
	if err != nil {
		return 0, err
	}

	doc := &Document{
		Name:         name,
		ByteSize:     byteSize,
		TotalPages:   totalPages,
		SegmentCount: count,
		IngestedAt:   time.Now().UTC(),
	}
	// The index write is the authoritative outcome; a ledger miss only
	// costs a redundant re-index later.
	if err := s.repo.Record(ctx, doc); err != nil {
		slog.ErrorContext(ctx, "failed to record ingestion", "document", name, "error", err)
	}

	s.mu.Lock()
	s.processed[key] = struct{}{}
	s.mu.Unlock()

	return count, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes a document's passages from the index and its ledger
// entries, so a later resubmission re-ingests it.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.passages.DeletePassagesByDocument(ctx, name); err != nil {
		return fmt.Errorf("%w: %v", index.ErrIndexUnavailable, err)
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}

	s.mu.Lock()
	for key := range s.processed {
		if len(key) > len(name) && key[:len(name)] == name && key[len(name)] == '|' {
			delete(s.processed, key)
		}
	}
	s.mu.Unlock()
	return nil
}
