package services

import (
	"context"
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/ml"
)

// modelFile is the serialized model artifact.
type modelFile struct {
	Framework  string                 `json:"framework"`
	RegRate    float64                `json:"reg_rate"`
	Features   []string               `json:"features"`
	Label      string                 `json:"label"`
	Classifier *ml.LogisticRegression `json:"classifier"`
}

type ModelFitService struct {
	artifacts ports.ArtifactStore
}

func NewModelFitService(artifacts ports.ArtifactStore) *ModelFitService {
	return &ModelFitService{artifacts: artifacts}
}

// Fit trains on the train artifact with C = 1/regRate and writes the model
// to modelURI.
func (s *ModelFitService) Fit(ctx context.Context, trainURI string, regRate float64, modelURI string) (*domain.ModelArtifact, error) {
	if !(regRate > 0) || math.IsInf(regRate, 1) {
		return nil, errors.Wrapf(domain.ErrInvalidParameter, "reg_rate must be positive, got %v", regRate)
	}

	train, err := readDataset(ctx, s.artifacts, trainURI)
	if err != nil {
		return nil, err
	}
	X, err := train.Matrix(domain.FeatureColumns)
	if err != nil {
		return nil, err
	}
	y, err := train.Labels()
	if err != nil {
		return nil, err
	}

	clf := ml.New(1 / regRate)
	if err := clf.Fit(ml.DenseFromRows(X), y); err != nil {
		if errors.Is(err, ml.ErrNotBinary) {
			return nil, errors.Wrapf(domain.ErrSchemaMismatch, "%s: %v", domain.LabelColumn, err)
		}
		return nil, errors.Wrap(err, "fit classifier")
	}

	w, err := s.artifacts.Create(ctx, modelURI)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err = enc.Encode(modelFile{
		Framework:  domain.ModelFramework,
		RegRate:    regRate,
		Features:   domain.FeatureColumns,
		Label:      domain.LabelColumn,
		Classifier: clf,
	})
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrap(err, "write model artifact")
	}

	log.WithFields(log.Fields{
		"model_uri":  modelURI,
		"rows":       train.Len(),
		"iterations": clf.Iterations,
		"reg_rate":   regRate,
	}).Info("model trained")
	return &domain.ModelArtifact{URI: modelURI, RegRate: regRate}, nil
}

func loadModel(ctx context.Context, artifacts ports.ArtifactStore, uri string) (*modelFile, error) {
	r, err := artifacts.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var m modelFile
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrapf(domain.ErrArtifactLoad, "decode %s: %v", uri, err)
	}
	if m.Classifier == nil || !m.Classifier.Fitted {
		return nil, errors.Wrapf(domain.ErrArtifactLoad, "%s holds no fitted classifier", uri)
	}
	if len(m.Features) != len(domain.FeatureColumns) || len(m.Classifier.Coef) != len(m.Features) {
		return nil, errors.Wrapf(domain.ErrArtifactLoad, "%s was fitted on %d features", uri, len(m.Classifier.Coef))
	}
	return &m, nil
}
