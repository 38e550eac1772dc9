package settings

import (
	"context"
)

type Settings struct {
	ID              int    `json:"-"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	GenerationModel string `json:"generation_model"`
	EmbeddingModel  string `json:"embedding_model"`
	SearchTopK      int    `json:"search_top_k"`
	ContextTurns    int    `json:"context_turns"`
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	return s.repo.Update(ctx, set)
}
