package dto

type ModelVersionResponse struct {
	ID                string            `json:"id"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
	RegisteredModelID string            `json:"registered_model_id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	State             string            `json:"state"`
	Status            string            `json:"status"`
	ArtifactType      string            `json:"artifact_type"`
	ModelFramework    string            `json:"model_framework"`
	ContainerImage    string            `json:"container_image"`
	URI               string            `json:"uri"`
	Accuracy          *float64          `json:"accuracy,omitempty"`
	PipelineRunID     string            `json:"pipeline_run_id,omitempty"`
	Labels            map[string]string `json:"labels"`
}

type ListModelVersionsResponse struct {
	Items      []ModelVersionResponse `json:"items"`
	Total      int                    `json:"total"`
	PageSize   int                    `json:"page_size"`
	NextOffset int                    `json:"next_offset"`
}
