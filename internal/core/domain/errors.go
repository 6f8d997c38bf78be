package domain

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ============================================================================
// Model Registry Errors
// ============================================================================

var (
	ErrModelNotFound       = errors.New("registered model not found")
	ErrVersionNotFound     = errors.New("model version not found")
	ErrVersionNameConflict = errors.New("version with this name already exists for this model")
	ErrInvalidModelName    = errors.New("model display name is required")
	ErrMissingProject      = errors.New("project is required")
	ErrMissingRegion       = errors.New("region is required")
	ErrMissingArtifactURI  = errors.New("model artifact uri is required")
	ErrInvalidParentModel  = errors.New("parent model must look like models/<id>")
)

// ============================================================================
// Pipeline Stage Errors
// ============================================================================

var (
	ErrDataNotFound     = errors.New("data not found")
	ErrMissingColumn    = errors.New("missing required column")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrArtifactLoad     = errors.New("artifact could not be loaded")
	ErrRegistryUpload   = errors.New("registry upload failed")
	ErrModelRejected    = errors.New("model rejected")
)

// ============================================================================
// Pipeline Run Errors
// ============================================================================

var (
	ErrRunNotFound       = errors.New("pipeline run not found")
	ErrInvalidSpec       = errors.New("invalid pipeline spec")
	ErrUnsupportedSchema = errors.New("unsupported pipeline schema version")
	ErrUnknownPipeline   = errors.New("pipeline file must be for 'dev' or 'prod'")
	ErrMissingParameter  = errors.New("missing required pipeline parameter")
	ErrRuntimeDisabled   = errors.New("orchestration runtime is not enabled")
	ErrShuttingDown      = errors.New("pipeline service is shutting down")
)

// RejectionError is returned by the rejection stage. It always matches
// ErrModelRejected.
type RejectionError struct {
	Accuracy  float64
	Threshold float64
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("model rejected: accuracy %s is below the minimum accuracy threshold %s",
		formatMetric(e.Accuracy), formatMetric(e.Threshold))
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrModelRejected
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RegistryUploadError is returned when a registry upload fails. It matches
// ErrRegistryUpload and unwraps to the underlying cause.
type RegistryUploadError struct {
	Err error
}

func (e *RegistryUploadError) Error() string {
	return ErrRegistryUpload.Error() + ": " + e.Err.Error()
}

func (e *RegistryUploadError) Is(target error) bool {
	return target == ErrRegistryUpload
}

func (e *RegistryUploadError) Unwrap() error {
	return e.Err
}
