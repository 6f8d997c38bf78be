package dto

import (
	"time"

	"mlops-pipeline/internal/core/domain"
)

const timeFormat = time.RFC3339

func ToRegisteredModelResponse(m *domain.RegisteredModel) RegisteredModelResponse {
	resp := RegisteredModelResponse{
		ID:           m.ID,
		CreatedAt:    m.CreatedAt.Format(timeFormat),
		UpdatedAt:    m.UpdatedAt.Format(timeFormat),
		Project:      m.Project,
		Region:       m.Region,
		DisplayName:  m.DisplayName,
		ResourceName: m.ResourceName(),
		Description:  m.Description,
		State:        string(m.State),
		Labels:       m.Labels,
		VersionCount: m.VersionCount,
	}

	if m.LatestVersion != nil {
		lv := ToModelVersionResponse(m.LatestVersion)
		resp.LatestVersion = &lv
	}

	return resp
}

func ToModelVersionResponse(v *domain.ModelVersion) ModelVersionResponse {
	return ModelVersionResponse{
		ID:                v.ID,
		CreatedAt:         v.CreatedAt.Format(timeFormat),
		UpdatedAt:         v.UpdatedAt.Format(timeFormat),
		RegisteredModelID: v.RegisteredModelID,
		Name:              v.Name,
		Description:       v.Description,
		State:             string(v.State),
		Status:            string(v.Status),
		ArtifactType:      string(v.ArtifactType),
		ModelFramework:    v.ModelFramework,
		ContainerImage:    v.ContainerImage,
		URI:               v.URI,
		Accuracy:          v.Accuracy,
		PipelineRunID:     v.PipelineRunID,
		Labels:            v.Labels,
	}
}

func ToPipelineJobResponse(r *domain.PipelineRun) PipelineJobResponse {
	resp := PipelineJobResponse{
		ID:             r.ID,
		JobID:          r.JobID,
		PipelineName:   r.PipelineName,
		DisplayName:    r.DisplayName,
		ServiceAccount: r.ServiceAccount,
		Runtime:        string(r.Runtime),
		Status:         string(r.Status),
		Outcome:        string(r.Outcome),
		Parameters:     r.Parameters,
		Labels:         r.Labels,
		EnableCaching:  r.EnableCaching,
		FailedStage:    r.FailedStage,
		Error:          r.Error,
		CreatedAt:      r.CreatedAt.Format(timeFormat),
		UpdatedAt:      r.UpdatedAt.Format(timeFormat),
	}
	for _, s := range r.Stages {
		resp.Stages = append(resp.Stages, StageRunResponse{
			Stage:      s.Stage,
			Status:     string(s.Status),
			StartedAt:  formatOptional(s.StartedAt),
			FinishedAt: formatOptional(s.FinishedAt),
			Error:      s.Error,
		})
	}
	for _, m := range r.Metrics {
		resp.Metrics = append(resp.Metrics, MetricResponse{Stage: m.Stage, Name: m.Name, Value: m.Value})
	}
	return resp
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeFormat)
}
