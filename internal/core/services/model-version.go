package services

import (
	"context"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

type ModelVersionService struct {
	repo      ports.ModelVersionRepository
	modelRepo ports.RegisteredModelRepository
}

func NewModelVersionService(repo ports.ModelVersionRepository, modelRepo ports.RegisteredModelRepository) *ModelVersionService {
	return &ModelVersionService{repo: repo, modelRepo: modelRepo}
}

func (s *ModelVersionService) Get(ctx context.Context, id string) (*domain.ModelVersion, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByModel lists the versions uploaded under a model, newest first unless
// the filter sorts otherwise. modelRef accepts the same forms as
// RegisteredModelService.Get.
func (s *ModelVersionService) ListByModel(ctx context.Context, modelRef string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	modelID, err := domain.ParseParentModel(modelRef)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.modelRepo.GetByID(ctx, modelID); err != nil {
		return nil, 0, err
	}

	filter.Limit = PageSize(filter.Limit)
	filter.RegisteredModelID = modelID
	return s.repo.ListByModel(ctx, modelID, filter)
}
