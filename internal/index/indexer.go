package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"docqa/internal/text"
)

// ErrIndexUnavailable signals that the retrieval index could not be reached.
// Callers must not record an ingestion as complete when they see it.
var ErrIndexUnavailable = errors.New("retrieval index unavailable")

// Passage is the unit stored in the retrieval index: a segment plus its
// embedding and provenance metadata.
type Passage struct {
	ID            uuid.UUID
	Content       string
	Vector        []float32
	DocumentName  string
	OrdinalIndex  int
	EstimatedPage int
	ByteSize      int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type PassageStore interface {
	UpsertPassages(ctx context.Context, passages []Passage) error
}

type Indexer struct {
	embedder Embedder
	store    PassageStore
}

func NewIndexer(e Embedder, s PassageStore) *Indexer {
	return &Indexer{embedder: e, store: s}
}

// passageNamespace seeds deterministic passage IDs so that re-indexing the
// same (documentName, ordinalIndex) overwrites instead of duplicating.
var passageNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func PassageID(documentName string, ordinalIndex int) uuid.UUID {
	return uuid.NewSHA1(passageNamespace, []byte(fmt.Sprintf("%s:%d", documentName, ordinalIndex)))
}

// Index embeds the segments and upserts them into the retrieval index,
// returning how many passages were written.
func (ix *Indexer) Index(ctx context.Context, documentName string, byteSize int, segments []text.Segment) (int, error) {
	if len(segments) == 0 {
		return 0, nil
	}

	passages := make([]Passage, 0, len(segments))
	for _, seg := range segments {
		vec, err := ix.embedder.Embed(ctx, seg.Text)
		if err != nil {
			return 0, fmt.Errorf("embed segment %d of %s: %w", seg.OrdinalIndex, documentName, err)
		}

		passages = append(passages, Passage{
			ID:            PassageID(documentName, seg.OrdinalIndex),
			Content:       seg.Text,
			Vector:        vec,
			DocumentName:  documentName,
			OrdinalIndex:  seg.OrdinalIndex,
			EstimatedPage: seg.EstimatedPage,
			ByteSize:      byteSize,
		})
	}

	if err := ix.store.UpsertPassages(ctx, passages); err != nil {
		slog.ErrorContext(ctx, "passage upsert failed", "document", documentName, "error", err)
		return 0, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	return len(passages), nil
}
