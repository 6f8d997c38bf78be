package domain

import "strings"

const (
	// ModelFramework is recorded on registered versions.
	ModelFramework = "logistic-regression"

	// DefaultServingImage mirrors the prebuilt sklearn serving container the
	// registry expects for this model family.
	DefaultServingImage = "us-docker.pkg.dev/vertex-ai/prediction/sklearn-cpu.1-2:latest"
)

// ModelArtifact references a serialized fitted classifier and the
// hyperparameter it was fitted with.
type ModelArtifact struct {
	URI     string  `json:"uri"`
	RegRate float64 `json:"reg_rate"`
}

// Dir is the artifact location handed to the registry: the directory that
// holds the model file.
func (m ModelArtifact) Dir() string {
	i := strings.LastIndex(m.URI, "/")
	if i <= 0 {
		return m.URI
	}
	return m.URI[:i]
}

// EvaluationResult is the accuracy measured on held-out rows together with
// the threshold it will be compared against.
type EvaluationResult struct {
	Accuracy  float64 `json:"accuracy"`
	Threshold float64 `json:"min_accuracy_threshold"`
	Rows      int     `json:"rows"`
}

// Metric names logged by the evaluation stage.
const (
	MetricAccuracy  = "accuracy"
	MetricThreshold = "min_accuracy_threshold"
)

func (r EvaluationResult) Metrics() map[string]float64 {
	return map[string]float64{
		MetricAccuracy:  r.Accuracy,
		MetricThreshold: r.Threshold,
	}
}
