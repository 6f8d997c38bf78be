package services

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/testutil"
)

func uploadRequest() UploadRequest {
	accuracy := 0.92
	return UploadRequest{
		Project:     "my-project",
		Region:      "us-central1",
		DisplayName: "diabetes-model",
		ArtifactURI: "/pipeline-root/run-1/train",
		RunID:       "run-1",
		Accuracy:    &accuracy,
	}
}

func TestRegistryService_Upload_NewModel(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	svc := NewRegistryService(models, uploads)

	uploads.On("CreateWithVersion", mock.Anything,
		mock.AnythingOfType("*domain.RegisteredModel"), mock.AnythingOfType("*domain.ModelVersion")).
		Run(testutil.NameVersion("v1")).Return(nil)

	model, version, err := svc.Upload(context.Background(), uploadRequest())
	require.NoError(t, err)

	assert.Equal(t, "my-project", model.Project)
	assert.Equal(t, "us-central1", model.Region)
	assert.Equal(t, "diabetes-model", model.DisplayName)
	assert.Equal(t, domain.ModelStateLive, model.State)
	assert.Equal(t, 1, model.VersionCount)
	assert.Same(t, version, model.LatestVersion)

	assert.Equal(t, model.ID, version.RegisteredModelID)
	assert.Equal(t, "v1", version.Name)
	assert.Equal(t, "/pipeline-root/run-1/train", version.URI)
	assert.Equal(t, domain.DefaultServingImage, version.ContainerImage)
	assert.Equal(t, domain.ModelFramework, version.ModelFramework)
	assert.Equal(t, "run-1", version.PipelineRunID)
	require.NotNil(t, version.Accuracy)
	assert.Equal(t, 0.92, *version.Accuracy)
	uploads.AssertExpectations(t)
	models.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestRegistryService_Upload_ParentModel(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	svc := NewRegistryService(models, uploads)

	parent := &domain.RegisteredModel{ID: "123", DisplayName: "diabetes-model"}
	models.On("GetByID", mock.Anything, "123").Return(parent, nil)
	uploads.On("AppendVersion", mock.Anything, "123", mock.AnythingOfType("*domain.ModelVersion")).
		Run(testutil.NameVersion("v3")).Return(3, nil)

	req := uploadRequest()
	req.ParentModel = "models/123"
	model, version, err := svc.Upload(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "123", model.ID)
	assert.Equal(t, 3, model.VersionCount)
	assert.Equal(t, "123", version.RegisteredModelID)
	assert.Equal(t, "v3", version.Name)
	uploads.AssertNotCalled(t, "CreateWithVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistryService_Upload_NotIdempotent(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	svc := NewRegistryService(models, uploads)

	uploads.On("CreateWithVersion", mock.Anything, mock.Anything, mock.Anything).
		Run(testutil.NameVersion("v1")).Return(nil).Twice()

	first, _, err := svc.Upload(context.Background(), uploadRequest())
	require.NoError(t, err)
	second, _, err := svc.Upload(context.Background(), uploadRequest())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.DisplayName, second.DisplayName)
	uploads.AssertExpectations(t)
}

func TestRegistryService_Upload_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UploadRequest)
		want   error
	}{
		{"missing project", func(r *UploadRequest) { r.Project = "" }, domain.ErrMissingProject},
		{"missing region", func(r *UploadRequest) { r.Region = " " }, domain.ErrMissingRegion},
		{"missing display name", func(r *UploadRequest) { r.DisplayName = "" }, domain.ErrInvalidModelName},
		{"missing artifact", func(r *UploadRequest) { r.ArtifactURI = "" }, domain.ErrMissingArtifactURI},
		{"malformed parent", func(r *UploadRequest) { r.ParentModel = "projects/p/datasets/1" }, domain.ErrInvalidParentModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRegistryService(new(testutil.MockRegisteredModelRepo), new(testutil.MockUploadRepo))
			req := uploadRequest()
			tt.mutate(&req)

			_, _, err := svc.Upload(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrRegistryUpload)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "registry upload failed")
		})
	}
}

func TestRegistryService_Upload_ParentNotFound(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	svc := NewRegistryService(models, uploads)

	models.On("GetByID", mock.Anything, "404").Return(nil, domain.ErrModelNotFound)

	req := uploadRequest()
	req.ParentModel = "models/404"
	_, _, err := svc.Upload(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrRegistryUpload)
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	uploads.AssertNotCalled(t, "AppendVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistryService_Upload_VersionWriteFails(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	svc := NewRegistryService(models, uploads)

	models.On("GetByID", mock.Anything, "123").Return(&domain.RegisteredModel{ID: "123"}, nil)
	uploads.On("AppendVersion", mock.Anything, "123", mock.Anything).Return(0, domain.ErrVersionNameConflict)

	req := uploadRequest()
	req.ParentModel = "123"
	_, _, err := svc.Upload(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrRegistryUpload)
	assert.ErrorIs(t, err, domain.ErrVersionNameConflict)
}

// The new model and its first version go through one repository call, so a
// version failure cannot leave the model behind.
func TestRegistryService_Upload_NewModelVersionFails(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	svc := NewRegistryService(models, uploads)

	uploads.On("CreateWithVersion", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrVersionNameConflict)

	model, version, err := svc.Upload(context.Background(), uploadRequest())
	require.Error(t, err)
	assert.Nil(t, model)
	assert.Nil(t, version)
	uploads.AssertNumberOfCalls(t, "CreateWithVersion", 1)

	assert.True(t, stderrors.Is(err, domain.ErrRegistryUpload))
	assert.True(t, stderrors.Is(err, domain.ErrVersionNameConflict))
	var upload *domain.RegistryUploadError
	assert.True(t, stderrors.As(err, &upload))
}
