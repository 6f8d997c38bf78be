package domain

import (
	"fmt"
	"strings"
	"time"
)

type ModelState string

const (
	ModelStateLive     ModelState = "LIVE"
	ModelStateArchived ModelState = "ARCHIVED"
)

// RegisteredModel is a top-level registry entry identified by
// (Project, Region, DisplayName). Uploads with a parent model become new
// versions of an existing entry instead of new entries.
type RegisteredModel struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Project     string            `json:"project"`
	Region      string            `json:"region"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
	State       ModelState        `json:"state"`
	Labels      map[string]string `json:"labels"`

	// Computed fields (populated by repository)
	VersionCount  int           `json:"version_count"`
	LatestVersion *ModelVersion `json:"latest_version,omitempty"`
}

// ResourceName is the fully qualified registry name of the model.
func (m *RegisteredModel) ResourceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/models/%s", m.Project, m.Region, m.ID)
}

// ParseParentModel extracts the model id from "models/<id>", a fully
// qualified "projects/<p>/locations/<r>/models/<id>" name, or a bare id.
func ParseParentModel(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidParentModel
	}
	parts := strings.Split(ref, "/")
	switch {
	case len(parts) == 1:
		return parts[0], nil
	case len(parts) >= 2 && parts[len(parts)-2] == "models" && parts[len(parts)-1] != "":
		return parts[len(parts)-1], nil
	default:
		return "", ErrInvalidParentModel
	}
}
