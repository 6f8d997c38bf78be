package ports

import (
	"context"

	"mlops-pipeline/internal/core/domain"
)

type ListFilter struct {
	Project     string
	Region      string
	DisplayName string
	State       string
	SortBy      string
	Order       string
	Limit       int
	Offset      int
}

type VersionListFilter struct {
	RegisteredModelID string
	Status            string
	SortBy            string
	Order             string
	Limit             int
	Offset            int
}

// RegisteredModelRepository reads registry entries. Entries are only ever
// written through ModelUploadRepository; there is no update or delete.
type RegisteredModelRepository interface {
	GetByID(ctx context.Context, id string) (*domain.RegisteredModel, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.RegisteredModel, int, error)
}

type ModelVersionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ModelVersion, error)
	ListByModel(ctx context.Context, modelID string, filter VersionListFilter) ([]*domain.ModelVersion, int, error)
}

// ModelUploadRepository writes a registry upload as one unit: either every
// row of the upload commits or none does.
type ModelUploadRepository interface {
	// CreateWithVersion inserts model together with version as its first
	// version, named "v1".
	CreateWithVersion(ctx context.Context, model *domain.RegisteredModel, version *domain.ModelVersion) error
	// AppendVersion adds version to an existing model. The version name is
	// assigned while the model row is locked, so concurrent appends never
	// collide. It returns the model's version count after the append.
	AppendVersion(ctx context.Context, modelID string, version *domain.ModelVersion) (int, error)
}
