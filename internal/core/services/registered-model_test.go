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

func TestRegisteredModelService_Get(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewRegisteredModelService(repo)

	expected := &domain.RegisteredModel{ID: "123", DisplayName: "diabetes-model"}
	repo.On("GetByID", mock.Anything, "123").Return(expected, nil)

	model, err := svc.Get(context.Background(), "123")
	assert.NoError(t, err)
	assert.Equal(t, "diabetes-model", model.DisplayName)
}

func TestRegisteredModelService_Get_NotFound(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewRegisteredModelService(repo)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrModelNotFound)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

func TestRegisteredModelService_List(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewRegisteredModelService(repo)

	filter := ports.ListFilter{Project: "my-project", Limit: 10}
	models := []*domain.RegisteredModel{{ID: "1", DisplayName: "m1"}}

	repo.On("List", mock.Anything, filter).Return(models, 1, nil)

	result, total, err := svc.List(context.Background(), filter)
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, result, 1)
}

func TestRegisteredModelService_List_DefaultLimit(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewRegisteredModelService(repo)

	filter := ports.ListFilter{Project: "my-project", Limit: 0}
	expectedFilter := filter
	expectedFilter.Limit = 20

	repo.On("List", mock.Anything, expectedFilter).Return([]*domain.RegisteredModel{}, 0, nil)

	_, _, err := svc.List(context.Background(), filter)
	assert.NoError(t, err)
}

func TestRegisteredModelService_List_MaxLimit(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewRegisteredModelService(repo)

	repo.On("List", mock.Anything, ports.ListFilter{Limit: 100}).Return([]*domain.RegisteredModel{}, 0, nil)

	_, _, err := svc.List(context.Background(), ports.ListFilter{Limit: 5000})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRegisteredModelService_Get_ResourceName(t *testing.T) {
	repo := new(testutil.MockRegisteredModelRepo)
	svc := NewRegisteredModelService(repo)

	repo.On("GetByID", mock.Anything, "123").Return(&domain.RegisteredModel{ID: "123"}, nil)

	for _, ref := range []string{"models/123", "projects/p/locations/us-central1/models/123"} {
		model, err := svc.Get(context.Background(), ref)
		assert.NoError(t, err, ref)
		assert.Equal(t, "123", model.ID)
	}

	_, err := svc.Get(context.Background(), "projects/p/models/")
	assert.ErrorIs(t, err, domain.ErrInvalidParentModel)
}

func TestPageSize(t *testing.T) {
	assert.Equal(t, 20, PageSize(0))
	assert.Equal(t, 20, PageSize(-3))
	assert.Equal(t, 7, PageSize(7))
	assert.Equal(t, 100, PageSize(101))
}
