package services

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

// UploadRequest describes one model upload to the registry.
type UploadRequest struct {
	Project               string
	Region                string
	DisplayName           string
	ArtifactURI           string
	ParentModel           string
	ServingContainerImage string
	RunID                 string
	Accuracy              *float64
	Labels                map[string]string
}

// RegistryService uploads approved models. Uploads are not idempotent:
// every call creates a new registry record. Each upload is written through
// the upload repository in one transaction, so a failure leaves no partial
// model or version behind.
type RegistryService struct {
	models  ports.RegisteredModelRepository
	uploads ports.ModelUploadRepository
}

func NewRegistryService(models ports.RegisteredModelRepository, uploads ports.ModelUploadRepository) *RegistryService {
	return &RegistryService{models: models, uploads: uploads}
}

// Upload registers req.ArtifactURI. With a parent model the upload becomes
// the next version of that model; otherwise a new model is created with the
// upload as its first version. Every error it returns is a
// *domain.RegistryUploadError.
func (s *RegistryService) Upload(ctx context.Context, req UploadRequest) (*domain.RegisteredModel, *domain.ModelVersion, error) {
	if err := req.validate(); err != nil {
		return nil, nil, &domain.RegistryUploadError{Err: err}
	}

	image := req.ServingContainerImage
	if image == "" {
		image = domain.DefaultServingImage
	}

	now := time.Now()
	version := &domain.ModelVersion{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
		State:          domain.ModelStateLive,
		Status:         domain.VersionStatusReady,
		ArtifactType:   domain.ArtifactTypeModel,
		ModelFramework: domain.ModelFramework,
		ContainerImage: image,
		URI:            req.ArtifactURI,
		Accuracy:       req.Accuracy,
		PipelineRunID:  req.RunID,
		Labels:         copyLabels(req.Labels),
	}

	var (
		model *domain.RegisteredModel
		err   error
	)
	if strings.TrimSpace(req.ParentModel) != "" {
		model, err = s.appendVersion(ctx, req.ParentModel, version)
	} else {
		model, err = s.createModel(ctx, req, version)
	}
	if err != nil {
		return nil, nil, &domain.RegistryUploadError{Err: err}
	}
	model.LatestVersion = version

	log.WithFields(log.Fields{
		"model_id":     model.ID,
		"version":      version.Name,
		"display_name": model.DisplayName,
		"artifact_uri": version.URI,
	}).Info("model uploaded to registry")
	return model, version, nil
}

func (s *RegistryService) appendVersion(ctx context.Context, ref string, version *domain.ModelVersion) (*domain.RegisteredModel, error) {
	id, err := domain.ParseParentModel(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "parent model %q", ref)
	}
	model, err := s.models.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "parent model %q", ref)
	}
	count, err := s.uploads.AppendVersion(ctx, model.ID, version)
	if err != nil {
		return nil, errors.Wrapf(err, "append version to %q", ref)
	}
	model.VersionCount = count
	return model, nil
}

func (s *RegistryService) createModel(ctx context.Context, req UploadRequest, version *domain.ModelVersion) (*domain.RegisteredModel, error) {
	now := time.Now()
	model := &domain.RegisteredModel{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Project:     req.Project,
		Region:      req.Region,
		DisplayName: req.DisplayName,
		State:       domain.ModelStateLive,
		Labels:      copyLabels(req.Labels),
	}
	if err := s.uploads.CreateWithVersion(ctx, model, version); err != nil {
		return nil, errors.Wrap(err, "create registered model")
	}
	model.VersionCount = 1
	return model, nil
}

func (r UploadRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Project) == "":
		return domain.ErrMissingProject
	case strings.TrimSpace(r.Region) == "":
		return domain.ErrMissingRegion
	case strings.TrimSpace(r.DisplayName) == "":
		return domain.ErrInvalidModelName
	case strings.TrimSpace(r.ArtifactURI) == "":
		return domain.ErrMissingArtifactURI
	}
	return nil
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
