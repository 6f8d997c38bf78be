package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/pipeline/executor"
	"mlops-pipeline/internal/pipelinespec"
	"mlops-pipeline/internal/testutil"
)

func TestNewComponentRegistry_CoversDefinitions(t *testing.T) {
	registry := NewComponentRegistry(StageServices{})
	for _, spec := range []*pipelinespec.PipelineSpec{pipelinespec.Dev(), pipelinespec.Prod()} {
		for _, st := range spec.Stages {
			assert.Contains(t, registry, st.Component, "stage %s", st.Name)
		}
	}
}

func TestApprovedFromInputs(t *testing.T) {
	in := &executor.StageInput{
		Stage: "register",
		Parameters: map[string]string{
			pipelinespec.InputAccuracy:    "0.92",
			pipelinespec.InputMinAccuracy: "0.8",
		},
		Artifacts: map[string]string{pipelinespec.SlotModel: "/root/run/train/model"},
	}

	approved, err := ApprovedFromInputs(in)
	require.NoError(t, err)
	assert.Equal(t, 0.92, approved.Accuracy)
	assert.Equal(t, 0.8, approved.Threshold)
	assert.Equal(t, "/root/run/train", approved.Model.Dir())

	delete(in.Artifacts, pipelinespec.SlotModel)
	_, err = ApprovedFromInputs(in)
	assert.ErrorIs(t, err, domain.ErrArtifactLoad)

	in.Parameters[pipelinespec.InputAccuracy] = "high"
	_, err = ApprovedFromInputs(in)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

// The dev pipeline's approve stage has no inputs when it runs as its own
// workflow step.
func TestApproveComponent_WithoutGateOutputs(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	registry := NewComponentRegistry(StageServices{Approval: NewApprovalService()})

	in := &executor.StageInput{Stage: pipelinespec.StageApprove, Parameters: map[string]string{}}
	_, err := registry[pipelinespec.ComponentModelApproved].Run(context.Background(), in)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.NotContains(t, entry.Data, "accuracy")
	assert.NotContains(t, entry.Data, "model_uri")
}

func TestRegisterComponent_UsesModelDirectory(t *testing.T) {
	models := new(testutil.MockRegisteredModelRepo)
	uploads := new(testutil.MockUploadRepo)
	registry := NewComponentRegistry(StageServices{Registry: NewRegistryService(models, uploads)})

	models.On("GetByID", mock.Anything, "123").Return(&domain.RegisteredModel{ID: "123"}, nil)
	uploads.On("AppendVersion", mock.Anything, "123", mock.MatchedBy(func(v *domain.ModelVersion) bool {
		return v.URI == "/root/run-9/train" && v.PipelineRunID == "run-9"
	})).Run(testutil.NameVersion("v1")).Return(1, nil)

	in := &executor.StageInput{
		RunID: "run-9",
		Stage: pipelinespec.StageRegister,
		Parameters: map[string]string{
			pipelinespec.InputProject:     "my-project",
			pipelinespec.InputRegion:      "us-central1",
			pipelinespec.InputDisplayName: "diabetes-model",
			pipelinespec.InputParentModel: "models/123",
		},
		Decision: domain.Approved{Model: domain.ModelArtifact{URI: "/root/run-9/train/model"}, Accuracy: 0.9, Threshold: 0.8},
	}
	_, err := registry[pipelinespec.ComponentModelRegister].Run(context.Background(), in)
	require.NoError(t, err)
	uploads.AssertExpectations(t)
}

func TestRejectComponent_FromInputs(t *testing.T) {
	registry := NewComponentRegistry(StageServices{Approval: NewApprovalService()})

	in := &executor.StageInput{
		Stage: pipelinespec.StageReject,
		Parameters: map[string]string{
			pipelinespec.InputAccuracy:    "0.92",
			pipelinespec.InputMinAccuracy: "0.95",
		},
	}
	_, err := registry[pipelinespec.ComponentModelReject].Run(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrModelRejected)
	assert.Contains(t, err.Error(), "0.92")
	assert.Contains(t, err.Error(), "0.95")
}

func TestSplitComponent_InvalidSeed(t *testing.T) {
	registry := NewComponentRegistry(StageServices{})

	in := &executor.StageInput{
		Stage: pipelinespec.StagePreprocess,
		Parameters: map[string]string{
			pipelinespec.InputSourceURI: "gs://bucket/d.csv",
			pipelinespec.InputSeed:      "-1",
		},
	}
	_, err := registry[pipelinespec.ComponentDataSplit].Run(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestRegisterComponent_NoRegistry(t *testing.T) {
	registry := NewComponentRegistry(StageServices{})

	_, err := registry[pipelinespec.ComponentModelRegister].Run(context.Background(), &executor.StageInput{
		Stage:     pipelinespec.StageRegister,
		Decision:  domain.Approved{Model: domain.ModelArtifact{URI: "/root/run/train/model"}, Accuracy: 0.9},
		Artifacts: map[string]string{pipelinespec.SlotModel: "/root/run/train/model"},
	})
	assert.ErrorIs(t, err, domain.ErrRegistryUpload)
}
