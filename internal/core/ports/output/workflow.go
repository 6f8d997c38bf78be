package ports

import (
	"context"

	"mlops-pipeline/internal/pipelinespec"
)

// WorkflowJob is a compiled pipeline bound to run parameters, ready to hand
// to an orchestration runtime.
type WorkflowJob struct {
	JobID          string
	Spec           *pipelinespec.PipelineSpec
	Parameters     map[string]string
	Labels         map[string]string
	ServiceAccount string
	PipelineRoot   string
	EnableCaching  bool
}

type WorkflowSubmission struct {
	Name      string
	Namespace string
	UID       string
}

// WorkflowSubmitter runs pipelines on a cluster orchestrator.
type WorkflowSubmitter interface {
	Submit(ctx context.Context, job *WorkflowJob) (*WorkflowSubmission, error)
	// Phase reports the orchestrator's view of a submitted job.
	Phase(ctx context.Context, name string) (string, error)
	IsAvailable() bool
}
