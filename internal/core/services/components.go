package services

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/pipeline/executor"
	"mlops-pipeline/internal/pipelinespec"
)

// StageServices holds the services the pipeline components are built from.
type StageServices struct {
	Split    *DataSplitService
	Fit      *ModelFitService
	Evaluate *EvaluationService
	Approval *ApprovalService
	Registry *RegistryService
}

// NewComponentRegistry binds every component name used by the pipeline
// definitions to its implementation.
func NewComponentRegistry(s StageServices) executor.Registry {
	return executor.Registry{
		pipelinespec.ComponentDataSplit:     executor.ComponentFunc(s.split),
		pipelinespec.ComponentModelFit:      executor.ComponentFunc(s.fit),
		pipelinespec.ComponentModelEvaluate: executor.ComponentFunc(s.evaluate),
		pipelinespec.ComponentApprovalGate:  executor.ComponentFunc(s.gate),
		pipelinespec.ComponentModelApproved: executor.ComponentFunc(s.approve),
		pipelinespec.ComponentModelRegister: executor.ComponentFunc(s.register),
		pipelinespec.ComponentModelReject:   executor.ComponentFunc(s.reject),
	}
}

func (s StageServices) split(ctx context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	source, err := in.Param(pipelinespec.InputSourceURI)
	if err != nil {
		return nil, err
	}
	cfg := domain.DefaultSplitConfig(source)
	if _, ok := in.Parameters[pipelinespec.InputSplitFraction]; ok {
		if cfg.SplitFraction, err = in.Float(pipelinespec.InputSplitFraction); err != nil {
			return nil, err
		}
	}
	if raw, ok := in.Parameters[pipelinespec.InputSeed]; ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrInvalidParameter, "seed %q is not an unsigned integer", raw)
		}
		cfg.Seed = seed
	}

	trainURI, err := in.Output(pipelinespec.SlotTrain)
	if err != nil {
		return nil, err
	}
	testURI, err := in.Output(pipelinespec.SlotTest)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.Split.Split(ctx, cfg, trainURI, testURI); err != nil {
		return nil, err
	}
	return &executor.StageOutput{}, nil
}

func (s StageServices) fit(ctx context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	trainURI, err := in.Artifact(pipelinespec.SlotTrain)
	if err != nil {
		return nil, err
	}
	regRate, err := in.Float(pipelinespec.InputRegRate)
	if err != nil {
		return nil, err
	}
	modelURI, err := in.Output(pipelinespec.SlotModel)
	if err != nil {
		return nil, err
	}
	if _, err := s.Fit.Fit(ctx, trainURI, regRate, modelURI); err != nil {
		return nil, err
	}
	return &executor.StageOutput{}, nil
}

func (s StageServices) evaluate(ctx context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	modelURI, err := in.Artifact(pipelinespec.SlotModel)
	if err != nil {
		return nil, err
	}
	testURI, err := in.Artifact(pipelinespec.SlotTest)
	if err != nil {
		return nil, err
	}
	threshold, err := in.Float(pipelinespec.InputMinAccuracy)
	if err != nil {
		return nil, err
	}
	result, err := s.Evaluate.Evaluate(ctx, modelURI, testURI, threshold)
	if err != nil {
		return nil, err
	}
	return &executor.StageOutput{Metrics: result.Metrics()}, nil
}

func (s StageServices) gate(_ context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	accuracy, threshold, err := gateValues(in)
	if err != nil {
		return nil, err
	}
	model, err := in.Artifact(pipelinespec.SlotModel)
	if err != nil {
		return nil, err
	}
	d := s.Approval.Decide(
		domain.EvaluationResult{Accuracy: accuracy, Threshold: threshold},
		domain.ModelArtifact{URI: model},
	)
	return &executor.StageOutput{Decision: d}, nil
}

func (s StageServices) approve(ctx context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	approved, ok := in.Decision.(domain.Approved)
	if !ok {
		if _, has := in.Parameters[pipelinespec.InputAccuracy]; has {
			var err error
			if approved, err = ApprovedFromInputs(in); err != nil {
				return nil, err
			}
		}
	}
	s.Approval.Approve(ctx, approved)
	return &executor.StageOutput{}, nil
}

func (s StageServices) register(ctx context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	if s.Registry == nil {
		return nil, errors.Wrap(domain.ErrRegistryUpload, "no model registry configured")
	}
	approved, ok := in.Decision.(domain.Approved)
	if !ok {
		var err error
		if approved, err = ApprovedFromInputs(in); err != nil {
			return nil, err
		}
	}

	req := UploadRequest{
		Project:               in.ParamOr(pipelinespec.InputProject, ""),
		Region:                in.ParamOr(pipelinespec.InputRegion, ""),
		DisplayName:           in.ParamOr(pipelinespec.InputDisplayName, ""),
		ParentModel:           in.ParamOr(pipelinespec.InputParentModel, ""),
		ArtifactURI:           approved.Model.Dir(),
		ServingContainerImage: domain.DefaultServingImage,
		RunID:                 in.RunID,
		Accuracy:              &approved.Accuracy,
	}
	if _, _, err := s.Registry.Upload(ctx, req); err != nil {
		return nil, err
	}
	return &executor.StageOutput{}, nil
}

func (s StageServices) reject(ctx context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
	rejected, ok := in.Decision.(domain.Rejected)
	if !ok {
		accuracy, threshold, err := gateValues(in)
		if err != nil {
			return nil, err
		}
		rejected = domain.Rejected{Accuracy: accuracy, Threshold: threshold}
	}
	return nil, s.Approval.Reject(ctx, rejected)
}

// ApprovedFromInputs rebuilds the approved branch from stage inputs when the
// stage runs outside the executor and the gate's decision arrives only as the
// values it was made on.
func ApprovedFromInputs(in *executor.StageInput) (domain.Approved, error) {
	accuracy, err := in.Float(pipelinespec.InputAccuracy)
	if err != nil {
		return domain.Approved{}, err
	}
	threshold, err := in.Float(pipelinespec.InputMinAccuracy)
	if err != nil {
		threshold = 0
		if _, set := in.Parameters[pipelinespec.InputMinAccuracy]; set {
			return domain.Approved{}, err
		}
	}
	model, err := in.Artifact(pipelinespec.SlotModel)
	if err != nil {
		return domain.Approved{}, err
	}
	return domain.Approved{Model: domain.ModelArtifact{URI: model}, Accuracy: accuracy, Threshold: threshold}, nil
}

func gateValues(in *executor.StageInput) (float64, float64, error) {
	accuracy, err := in.Float(pipelinespec.InputAccuracy)
	if err != nil {
		return 0, 0, err
	}
	threshold, err := in.Float(pipelinespec.InputMinAccuracy)
	if err != nil {
		return 0, 0, err
	}
	return accuracy, threshold, nil
}

func metricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
