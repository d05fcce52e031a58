package job

import (
	"context"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Start opens a pending job record for an upload and returns its id.
func (s *Service) Start(ctx context.Context, filename string) (string, error) {
	j := &Job{Filename: filename, Status: StatusPending}
	if err := s.repo.Save(ctx, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

func (s *Service) Complete(ctx context.Context, id, documentID string, durationMS int64) error {
	return s.repo.UpdateResult(ctx, id, StatusCompleted, "", documentID, durationMS)
}

func (s *Service) Fail(ctx context.Context, id, errMsg string, durationMS int64) error {
	return s.repo.UpdateResult(ctx, id, StatusFailed, errMsg, "", durationMS)
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
