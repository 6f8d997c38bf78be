package dto

import "encoding/json"

// CreatePipelineJobRequest submits a compiled pipeline. Exactly one of
// PipelineSpec (the compiled YAML document) and Pipeline (a built-in
// definition name such as "dev" or "prod") must be set.
type CreatePipelineJobRequest struct {
	DisplayName     string            `json:"display_name" binding:"max=100"`
	PipelineSpec    string            `json:"pipeline_spec"`
	Pipeline        string            `json:"pipeline"`
	ParameterValues json.RawMessage   `json:"parameter_values"`
	Labels          map[string]string `json:"labels"`
	ServiceAccount  string            `json:"service_account"`
	EnableCaching   bool              `json:"enable_caching"`
	Runtime         string            `json:"runtime"`
}

type StageRunResponse struct {
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

type MetricResponse struct {
	Stage string  `json:"stage"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type PipelineJobResponse struct {
	ID             string             `json:"id"`
	JobID          string             `json:"job_id"`
	PipelineName   string             `json:"pipeline_name"`
	DisplayName    string             `json:"display_name"`
	ServiceAccount string             `json:"service_account,omitempty"`
	Runtime        string             `json:"runtime"`
	Status         string             `json:"status"`
	Outcome        string             `json:"outcome,omitempty"`
	Parameters     map[string]string  `json:"parameters"`
	Labels         map[string]string  `json:"labels"`
	EnableCaching  bool               `json:"enable_caching"`
	FailedStage    string             `json:"failed_stage,omitempty"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
	Stages         []StageRunResponse `json:"stages,omitempty"`
	Metrics        []MetricResponse   `json:"metrics,omitempty"`
}

type ListPipelineJobsResponse struct {
	Items      []PipelineJobResponse `json:"items"`
	Total      int                   `json:"total"`
	PageSize   int                   `json:"page_size"`
	NextOffset int                   `json:"next_offset"`
}
