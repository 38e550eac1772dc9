package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/retrieval"
)

// ErrStoreNotReady signals that the turn store schema is not available yet,
// typically during first boot before migrations ran.
var ErrStoreNotReady = errors.New("conversation store not ready")

// Turn is one question/answer exchange within a session. Turns are never
// deleted; failed ones are kept for audit but excluded from caching and
// conversational context.
type Turn struct {
	ID                 string    `json:"id"`
	SessionID          string    `json:"session_id"`
	QuestionNormalized string    `json:"-"`
	QuestionRaw        string    `json:"question"`
	AnswerText         string    `json:"answer"`
	PageNumbers        []int     `json:"page_numbers"`
	Rating             *int      `json:"rating,omitempty"`
	Success            bool      `json:"success"`
	CreatedAt          time.Time `json:"created_at"`
}

// NormalizeQuestion is the identity used for exact-match answer reuse.
func NormalizeQuestion(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

type Repository interface {
	Append(ctx context.Context, turn *Turn) error
	FindSuccessful(ctx context.Context, normalizedQuestion string) (*Turn, error)
	RecentSuccessful(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	UpdateRating(ctx context.Context, turnID string, rating int) error
	ListBySession(ctx context.Context, sessionID string) ([]Turn, error)
	Count(ctx context.Context) (int, error)
}

type Retriever interface {
	Search(ctx context.Context, question string) []retrieval.Passage
}

// AskResult is the answer-pipeline output for one request.
type AskResult struct {
	TurnID      string `json:"turn_id"`
	SessionID   string `json:"session_id"`
	Answer      string `json:"answer"`
	PageNumbers []int  `json:"page_numbers"`
	Success     bool   `json:"success"`
	// Consistent marks an answer served verbatim from a prior successful
	// turn with the same normalized question.
	Consistent bool `json:"consistent"`
}

type Service struct {
	repo         Repository
	retriever    Retriever
	generator    *Generator
	contextTurns int
}

func NewService(repo Repository, retriever Retriever, generator *Generator, contextTurns int) *Service {
	if contextTurns <= 0 {
		contextTurns = 3
	}
	return &Service{repo: repo, retriever: retriever, generator: generator, contextTurns: contextTurns}
}

// Ask runs the answer pipeline: cache check, context assembly, retrieval,
// generation, classification, persistence. Generation problems never become
// transport errors; they come back as structured answer text with
// Success=false.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*AskResult, error) {
	normalized := NormalizeQuestion(question)

	cached, err := s.repo.FindSuccessful(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrStoreNotReady) {
			return s.respondInitializing(ctx, sessionID, question, normalized), nil
		}
		// Degrade to a cache miss; the pipeline can still answer.
		slog.WarnContext(ctx, "answer cache lookup failed", "error", err)
	}
	if cached != nil {
		slog.InfoContext(ctx, "serving cached answer", "turn_id", cached.ID)
		return &AskResult{
			TurnID:      cached.ID,
			SessionID:   cached.SessionID,
			Answer:      cached.AnswerText,
			PageNumbers: pagesOrEmpty(cached.PageNumbers),
			Success:     true,
			Consistent:  true,
		}, nil
	}

	history, err := s.repo.RecentSuccessful(ctx, sessionID, s.contextTurns)
	if err != nil {
		slog.WarnContext(ctx, "context window lookup failed, continuing without history", "error", err)
		history = nil
	}

	passages := s.retriever.Search(ctx, question)

	answer := s.generator.Generate(ctx, joinPassages(passages), FormatHistory(history), question)
	success := Classify(answer)

	turn := &Turn{
		ID:                 uuid.New().String(),
		SessionID:          sessionID,
		QuestionNormalized: normalized,
		QuestionRaw:        question,
		AnswerText:         answer,
		PageNumbers:        retrieval.Pages(passages),
		Success:            success,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.repo.Append(ctx, turn); err != nil {
		if !success {
			// Best-effort write on the failure path: the caller still gets
			// the structured error answer.
			slog.ErrorContext(ctx, "failed to persist error turn", "error", err)
		} else {
			return s.respondSystemError(ctx, sessionID, question, normalized, err), nil
		}
	}

	return &AskResult{
		TurnID:      turn.ID,
		SessionID:   sessionID,
		Answer:      turn.AnswerText,
		PageNumbers: pagesOrEmpty(turn.PageNumbers),
		Success:     success,
	}, nil
}

// Rate records out-of-band feedback. An unknown turn ID is a no-op.
func (s *Service) Rate(ctx context.Context, turnID string, rating int) error {
	return s.repo.UpdateRating(ctx, turnID, rating)
}

func (s *Service) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// respondInitializing handles the storage-schema-not-ready case with a fixed
// answer instead of a hard failure.
func (s *Service) respondInitializing(ctx context.Context, sessionID, question, normalized string) *AskResult {
	turn := s.persistErrorTurn(ctx, sessionID, question, normalized, InitializingResponse)
	return &AskResult{
		TurnID:      turn.ID,
		SessionID:   sessionID,
		Answer:      InitializingResponse,
		PageNumbers: []int{},
		Success:     false,
	}
}

// respondSystemError is the catch-all terminal state: persist a generic
// error turn (best effort) and answer with the error payload.
func (s *Service) respondSystemError(ctx context.Context, sessionID, question, normalized string, cause error) *AskResult {
	slog.ErrorContext(ctx, "answer pipeline failed", "error", cause)
	turn := s.persistErrorTurn(ctx, sessionID, question, normalized, SystemErrorResponse)
	return &AskResult{
		TurnID:      turn.ID,
		SessionID:   sessionID,
		Answer:      SystemErrorResponse,
		PageNumbers: []int{},
		Success:     false,
	}
}

func (s *Service) persistErrorTurn(ctx context.Context, sessionID, question, normalized, answer string) *Turn {
	turn := &Turn{
		ID:                 uuid.New().String(),
		SessionID:          sessionID,
		QuestionNormalized: normalized,
		QuestionRaw:        question,
		AnswerText:         answer,
		PageNumbers:        []int{},
		Success:            false,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.repo.Append(ctx, turn); err != nil {
		slog.ErrorContext(ctx, "failed to persist error turn", "error", err)
	}
	return turn
}

func joinPassages(passages []retrieval.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n\n")
}

func pagesOrEmpty(pages []int) []int {
	if pages == nil {
		return []int{}
	}
	return pages
}
