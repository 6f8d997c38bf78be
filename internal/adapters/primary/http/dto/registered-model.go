package dto

type RegisteredModelResponse struct {
	ID            string                `json:"id"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at"`
	Project       string                `json:"project"`
	Region        string                `json:"region"`
	DisplayName   string                `json:"display_name"`
	ResourceName  string                `json:"resource_name"`
	Description   string                `json:"description"`
	State         string                `json:"state"`
	Labels        map[string]string     `json:"labels"`
	VersionCount  int                   `json:"version_count"`
	LatestVersion *ModelVersionResponse `json:"latest_version,omitempty"`
}

type ListRegisteredModelsResponse struct {
	Items      []RegisteredModelResponse `json:"items"`
	Total      int                       `json:"total"`
	PageSize   int                       `json:"page_size"`
	NextOffset int                       `json:"next_offset"`
}
