package domain

import (
	"time"
)

type VersionStatus string

const (
	VersionStatusPending VersionStatus = "PENDING"
	VersionStatusReady   VersionStatus = "READY"
	VersionStatusFailed  VersionStatus = "FAILED"
)

type ArtifactType string

const (
	ArtifactTypeModel   ArtifactType = "model-artifact"
	ArtifactTypeDataset ArtifactType = "dataset-artifact"
)

// ModelVersion is one upload of a model artifact under a registered model.
type ModelVersion struct {
	ID                string            `json:"id"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	RegisteredModelID string            `json:"registered_model_id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	State             ModelState        `json:"state"`
	Status            VersionStatus     `json:"status"`
	ArtifactType      ArtifactType      `json:"artifact_type"`
	ModelFramework    string            `json:"model_framework"`
	ContainerImage    string            `json:"container_image"`
	URI               string            `json:"uri"`
	Accuracy          *float64          `json:"accuracy,omitempty"`
	PipelineRunID     string            `json:"pipeline_run_id,omitempty"`
	Labels            map[string]string `json:"labels"`
}
