package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Passage is a retrieved unit of grounding context with its provenance.
type Passage struct {
	Content       string  `json:"content"`
	DocumentName  string  `json:"document_name"`
	OrdinalIndex  int     `json:"ordinal_index"`
	EstimatedPage int     `json:"estimated_page"`
	ByteSize      int     `json:"byte_size"`
	Score         float32 `json:"score"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	QueryNearest(ctx context.Context, vector []float32, k int) ([]Passage, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	topK     int
	logger   *QueryLogger
}

func NewService(e Embedder, s VectorStore, topK int, l *QueryLogger) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{embedder: e, store: s, topK: topK, logger: l}
}

// Search returns the passages most similar to the question, best first.
// An unreachable or empty index degrades to an empty result, never an
// error: an answer pipeline with no grounding context refuses on its own.
func (s *Service) Search(ctx context.Context, question string) []Passage {
	start := time.Now()

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		slog.WarnContext(ctx, "question embedding failed, returning empty context", "error", err)
		return nil
	}

	passages, err := s.store.QueryNearest(ctx, vec, s.topK)
	if err != nil {
		slog.WarnContext(ctx, "index query failed, returning empty context", "error", err)
		return nil
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:      question,
			NumResults: len(passages),
			Duration:   time.Since(start),
		})
	}

	return passages
}

// Pages collects the estimated pages of the passages as a deduplicated
// ascending set, dropping non-positive values.
func Pages(passages []Passage) []int {
	seen := make(map[int]bool, len(passages))
	pages := make([]int, 0, len(passages))
	for _, p := range passages {
		if p.EstimatedPage <= 0 || seen[p.EstimatedPage] {
			continue
		}
		seen[p.EstimatedPage] = true
		pages = append(pages, p.EstimatedPage)
	}
	sort.Ints(pages)
	return pages
}
