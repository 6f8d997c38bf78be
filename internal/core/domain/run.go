package domain

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Runtime names where a run executes.
type Runtime string

const (
	RuntimeLocal      Runtime = "local"
	RuntimeKubernetes Runtime = "kubernetes"
)

func (r Runtime) Valid() bool {
	return r == RuntimeLocal || r == RuntimeKubernetes
}

type StageStatus string

const (
	StageStatusRunning   StageStatus = "RUNNING"
	StageStatusSucceeded StageStatus = "SUCCEEDED"
	StageStatusFailed    StageStatus = "FAILED"
	StageStatusSkipped   StageStatus = "SKIPPED"
)

// PipelineRun is one execution of a compiled pipeline.
type PipelineRun struct {
	ID             string            `json:"id"`
	JobID          string            `json:"job_id"`
	PipelineName   string            `json:"pipeline_name"`
	DisplayName    string            `json:"display_name"`
	ServiceAccount string            `json:"service_account,omitempty"`
	Runtime        Runtime           `json:"runtime"`
	Status         RunStatus         `json:"status"`
	Outcome        Outcome           `json:"outcome,omitempty"`
	Parameters     map[string]string `json:"parameters"`
	Labels         map[string]string `json:"labels"`
	EnableCaching  bool              `json:"enable_caching"`
	FailedStage    string            `json:"failed_stage,omitempty"`
	Error          string            `json:"error,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	Stages  []StageRun `json:"stages,omitempty"`
	Metrics []Metric   `json:"metrics,omitempty"`
}

// StageRun is the recorded state of one stage in a run.
type StageRun struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Metric is a named scalar logged by a stage.
type Metric struct {
	Stage string  `json:"stage"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// JobID builds the submission id: display name plus a second-resolution
// timestamp.
func JobID(displayName string, at time.Time) string {
	return displayName + "-" + at.Format("20060102150405")
}
