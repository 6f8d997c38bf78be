package services

import (
	"context"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/ml"
)

type EvaluationService struct {
	artifacts ports.ArtifactStore
}

func NewEvaluationService(artifacts ports.ArtifactStore) *EvaluationService {
	return &EvaluationService{artifacts: artifacts}
}

// Evaluate scores the model on the test artifact. The threshold is carried
// through so it is logged next to the accuracy.
func (s *EvaluationService) Evaluate(ctx context.Context, modelURI, testURI string, threshold float64) (*domain.EvaluationResult, error) {
	model, err := loadModel(ctx, s.artifacts, modelURI)
	if err != nil {
		return nil, err
	}
	test, err := readDataset(ctx, s.artifacts, testURI)
	if err != nil {
		return nil, err
	}

	X, err := test.Matrix(model.Features)
	if err != nil {
		return nil, err
	}
	truth, err := test.Labels()
	if err != nil {
		return nil, err
	}

	predicted, err := model.Classifier.Predict(ml.DenseFromRows(X))
	if err != nil {
		return nil, errors.Wrapf(domain.ErrArtifactLoad, "predict: %v", err)
	}
	accuracy, err := ml.Accuracy(truth, predicted)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrSchemaMismatch, "score: %v", err)
	}

	result := &domain.EvaluationResult{Accuracy: accuracy, Threshold: threshold, Rows: test.Len()}
	log.WithFields(log.Fields{
		"accuracy":               accuracy,
		"min_accuracy_threshold": threshold,
		"rows":                   result.Rows,
	}).Info("model evaluated")
	return result, nil
}
