package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/testutil"
)

func TestModelVersionService_Get(t *testing.T) {
	versionRepo := new(testutil.MockModelVersionRepo)
	modelRepo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelVersionService(versionRepo, modelRepo)

	expected := &domain.ModelVersion{ID: "v-1", RegisteredModelID: "123", Name: "v1"}
	versionRepo.On("GetByID", mock.Anything, "v-1").Return(expected, nil)

	version, err := svc.Get(context.Background(), "v-1")
	assert.NoError(t, err)
	assert.Equal(t, "v1", version.Name)
}

func TestModelVersionService_Get_NotFound(t *testing.T) {
	versionRepo := new(testutil.MockModelVersionRepo)
	modelRepo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelVersionService(versionRepo, modelRepo)

	versionRepo.On("GetByID", mock.Anything, "nope").Return(nil, domain.ErrVersionNotFound)

	_, err := svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestModelVersionService_ListByModel(t *testing.T) {
	versionRepo := new(testutil.MockModelVersionRepo)
	modelRepo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelVersionService(versionRepo, modelRepo)

	modelRepo.On("GetByID", mock.Anything, "123").Return(&domain.RegisteredModel{ID: "123"}, nil)
	expectedFilter := ports.VersionListFilter{RegisteredModelID: "123", Limit: 20}
	versions := []*domain.ModelVersion{{ID: "a", Name: "v1"}, {ID: "b", Name: "v2"}}
	versionRepo.On("ListByModel", mock.Anything, "123", expectedFilter).Return(versions, 2, nil)

	result, total, err := svc.ListByModel(context.Background(), "123", ports.VersionListFilter{})
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, result, 2)
}

func TestModelVersionService_ListByModel_ModelNotFound(t *testing.T) {
	versionRepo := new(testutil.MockModelVersionRepo)
	modelRepo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelVersionService(versionRepo, modelRepo)

	modelRepo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrModelNotFound)

	_, _, err := svc.ListByModel(context.Background(), "missing", ports.VersionListFilter{})
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	versionRepo.AssertNotCalled(t, "ListByModel", mock.Anything, mock.Anything, mock.Anything)
}

func TestModelVersionService_ListByModel_ParentReference(t *testing.T) {
	versionRepo := new(testutil.MockModelVersionRepo)
	modelRepo := new(testutil.MockRegisteredModelRepo)
	svc := NewModelVersionService(versionRepo, modelRepo)

	modelRepo.On("GetByID", mock.Anything, "123").Return(&domain.RegisteredModel{ID: "123"}, nil)
	versionRepo.On("ListByModel", mock.Anything, "123", ports.VersionListFilter{RegisteredModelID: "123", Limit: 100}).
		Return([]*domain.ModelVersion{}, 0, nil)

	_, _, err := svc.ListByModel(context.Background(), "models/123", ports.VersionListFilter{Limit: 500})
	assert.NoError(t, err)
	versionRepo.AssertExpectations(t)
}
