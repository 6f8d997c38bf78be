package services

import (
	"context"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

// RegisteredModelService is the read side of the registry. Entries are only
// ever written by the registration stage.
type RegisteredModelService struct {
	repo ports.RegisteredModelRepository
}

func NewRegisteredModelService(repo ports.RegisteredModelRepository) *RegisteredModelService {
	return &RegisteredModelService{repo: repo}
}

// Get looks a model up by id, "models/<id>" or its full resource name.
func (s *RegisteredModelService) Get(ctx context.Context, ref string) (*domain.RegisteredModel, error) {
	id, err := domain.ParseParentModel(ref)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *RegisteredModelService) List(ctx context.Context, filter ports.ListFilter) ([]*domain.RegisteredModel, int, error) {
	filter.Limit = PageSize(filter.Limit)
	return s.repo.List(ctx, filter)
}
