package settings

import (
	"context"
)

// Settings are runtime-tunable search defaults, stored as a single row.
// SimilarityThreshold is the similarity fraction (1.0 = identical) used
// to derive the maximum cosine distance for retrieval.
type Settings struct {
	ID                  int     `json:"-"`
	RerankProvider      string  `json:"rerank_provider"`
	RerankAPIKey        string  `json:"rerank_api_key"`
	GeminiAPIKey        string  `json:"gemini_api_key"`
	SearchLimit         int     `json:"search_limit"`
	SimilarityThreshold float32 `json:"similarity_threshold"`
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
