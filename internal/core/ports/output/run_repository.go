package ports

import (
	"context"

	"mlops-pipeline/internal/core/domain"
)

type RunListFilter struct {
	PipelineName string
	Status       string
	Limit        int
	Offset       int
}

// RunRepository tracks pipeline runs, their stages and logged metrics.
type RunRepository interface {
	Create(ctx context.Context, run *domain.PipelineRun) error
	// Get returns the run with its stages and metrics.
	Get(ctx context.Context, id string) (*domain.PipelineRun, error)
	List(ctx context.Context, filter RunListFilter) ([]*domain.PipelineRun, int, error)
	// UpdateStatus writes Status, Outcome, FailedStage, Error and UpdatedAt.
	UpdateStatus(ctx context.Context, run *domain.PipelineRun) error
	SaveStage(ctx context.Context, runID string, stage domain.StageRun) error
	AddMetric(ctx context.Context, runID string, metric domain.Metric) error
}
