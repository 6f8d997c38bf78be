package executor

import (
	"context"
	"path"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/pipelinespec"
)

type pathLocator struct{}

func (pathLocator) URI(runID, stage, slot string) string {
	return path.Join("/pipeline-root", runID, stage, slot)
}

type recorder struct {
	mu     sync.Mutex
	calls  []string
	inputs map[string]*StageInput
}

func (r *recorder) record(in *StageInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, in.Stage)
	if r.inputs == nil {
		r.inputs = map[string]*StageInput{}
	}
	r.inputs[in.Stage] = in
}

func fakeComponents(rec *recorder, accuracy float64) Registry {
	noop := ComponentFunc(func(_ context.Context, in *StageInput) (*StageOutput, error) {
		rec.record(in)
		return nil, nil
	})
	return Registry{
		pipelinespec.ComponentDataSplit: noop,
		pipelinespec.ComponentModelFit:  noop,
		pipelinespec.ComponentModelEvaluate: ComponentFunc(func(_ context.Context, in *StageInput) (*StageOutput, error) {
			rec.record(in)
			threshold, err := in.Float(pipelinespec.InputMinAccuracy)
			if err != nil {
				return nil, err
			}
			return &StageOutput{Metrics: domain.EvaluationResult{Accuracy: accuracy, Threshold: threshold}.Metrics()}, nil
		}),
		pipelinespec.ComponentApprovalGate: ComponentFunc(func(_ context.Context, in *StageInput) (*StageOutput, error) {
			rec.record(in)
			acc, err := in.Float(pipelinespec.InputAccuracy)
			if err != nil {
				return nil, err
			}
			threshold, err := in.Float(pipelinespec.InputMinAccuracy)
			if err != nil {
				return nil, err
			}
			uri, err := in.Artifact(pipelinespec.SlotModel)
			if err != nil {
				return nil, err
			}
			d := domain.Decide(domain.EvaluationResult{Accuracy: acc, Threshold: threshold}, domain.ModelArtifact{URI: uri})
			return &StageOutput{Decision: d}, nil
		}),
		pipelinespec.ComponentModelApproved: noop,
		pipelinespec.ComponentModelRegister: noop,
		pipelinespec.ComponentModelReject: ComponentFunc(func(_ context.Context, in *StageInput) (*StageOutput, error) {
			rec.record(in)
			rejected, ok := in.Decision.(domain.Rejected)
			if !ok {
				return nil, errors.New("reject ran without a rejection")
			}
			return nil, rejected.Err()
		}),
	}
}

func runParams(minAccuracy string) map[string]string {
	return map[string]string{
		pipelinespec.ParamProjectID:        "proj",
		pipelinespec.ParamRegion:           "us-central1",
		pipelinespec.ParamModelDisplayName: "diabetes",
		pipelinespec.ParamInputURI:         "gs://bucket/diabetes.csv",
		pipelinespec.ParamMinAccuracy:      minAccuracy,
	}
}

func TestRun_Approved(t *testing.T) {
	rec := &recorder{}
	exec := New(fakeComponents(rec, 0.92), pathLocator{})

	result, err := exec.Run(context.Background(), "run-1", pipelinespec.Prod(), runParams("0.80"))
	require.NoError(t, err)

	assert.Equal(t, []string{"preprocess", "train", "evaluate", "gate", "approve", "register"}, rec.calls)
	assert.Equal(t, domain.OutcomeApproved, result.Outcome())

	status, ok := result.Status(pipelinespec.StageReject)
	require.True(t, ok)
	assert.Equal(t, domain.StageStatusSkipped, status)

	register := rec.inputs[pipelinespec.StageRegister]
	approved, ok := register.Decision.(domain.Approved)
	require.True(t, ok)
	assert.Equal(t, "/pipeline-root/run-1/train/model", approved.Model.URI)
	assert.Equal(t, "/pipeline-root/run-1/train/model", register.Artifacts[pipelinespec.SlotModel])
	assert.Equal(t, "", register.Parameters[pipelinespec.InputParentModel])
	assert.Equal(t, "0.92", register.Parameters[pipelinespec.InputAccuracy])

	train := rec.inputs[pipelinespec.StageTrain]
	assert.Equal(t, "0.05", train.Parameters[pipelinespec.InputRegRate])
	assert.Equal(t, "/pipeline-root/run-1/preprocess/train", train.Artifacts[pipelinespec.SlotTrain])

	assert.ElementsMatch(t, []domain.Metric{
		{Stage: "evaluate", Name: domain.MetricAccuracy, Value: 0.92},
		{Stage: "evaluate", Name: domain.MetricThreshold, Value: 0.80},
	}, result.Metrics)
}

func TestRun_Rejected(t *testing.T) {
	rec := &recorder{}
	exec := New(fakeComponents(rec, 0.92), pathLocator{})

	result, err := exec.Run(context.Background(), "run-2", pipelinespec.Dev(), runParams("0.95"))
	require.Error(t, err)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, pipelinespec.StageReject, stageErr.Stage)
	assert.True(t, errors.Is(err, domain.ErrModelRejected))
	assert.Contains(t, err.Error(), "0.92")
	assert.Contains(t, err.Error(), "0.95")

	assert.NotContains(t, rec.calls, pipelinespec.StageRegister)
	assert.NotContains(t, rec.calls, pipelinespec.StageApprove)
	assert.Equal(t, domain.OutcomeRejected, result.Outcome())

	for _, stage := range []string{pipelinespec.StageApprove, pipelinespec.StageRegister} {
		status, ok := result.Status(stage)
		require.True(t, ok)
		assert.Equal(t, domain.StageStatusSkipped, status, stage)
	}
}

func TestRun_BoundaryApproves(t *testing.T) {
	rec := &recorder{}
	exec := New(fakeComponents(rec, 0.8), pathLocator{})

	result, err := exec.Run(context.Background(), "run-3", pipelinespec.Dev(), runParams("0.8"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApproved, result.Outcome())
	assert.Contains(t, rec.calls, pipelinespec.StageRegister)
}

func TestRun_StageFailureStops(t *testing.T) {
	rec := &recorder{}
	components := fakeComponents(rec, 0.9)
	components[pipelinespec.ComponentModelFit] = ComponentFunc(func(_ context.Context, in *StageInput) (*StageOutput, error) {
		return nil, errors.Wrap(domain.ErrInvalidParameter, "reg_rate must be positive")
	})

	obs := &countingObserver{}
	exec := New(components, pathLocator{}, WithObserver(obs))
	result, err := exec.Run(context.Background(), "run-4", pipelinespec.Dev(), runParams("0.7"))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, pipelinespec.StageTrain, stageErr.Stage)
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
	assert.Equal(t, []string{pipelinespec.StagePreprocess}, rec.calls)
	assert.Equal(t, domain.Outcome(""), result.Outcome())

	assert.Equal(t, 2, obs.started)
	assert.Equal(t, map[domain.StageStatus]int{
		domain.StageStatusSucceeded: 1,
		domain.StageStatusFailed:    1,
	}, obs.finished)
}

func TestRun_MissingComponent(t *testing.T) {
	rec := &recorder{}
	components := fakeComponents(rec, 0.9)
	delete(components, pipelinespec.ComponentModelEvaluate)

	_, err := New(components, pathLocator{}).Run(context.Background(), "run-5", pipelinespec.Dev(), runParams("0.7"))
	assert.True(t, errors.Is(err, domain.ErrInvalidSpec))
}

func TestRun_MissingParameter(t *testing.T) {
	rec := &recorder{}
	_, err := New(fakeComponents(rec, 0.9), pathLocator{}).
		Run(context.Background(), "run-6", pipelinespec.Dev(), map[string]string{})
	assert.True(t, errors.Is(err, domain.ErrMissingParameter))
	assert.Empty(t, rec.calls)
}

func TestRun_Cancelled(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(fakeComponents(rec, 0.9), pathLocator{}).Run(ctx, "run-7", pipelinespec.Dev(), runParams("0.7"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, rec.calls)
}

type countingObserver struct {
	started  int
	finished map[domain.StageStatus]int
}

func (o *countingObserver) StageStarted(context.Context, string, string) {
	o.started++
}

func (o *countingObserver) StageFinished(_ context.Context, _, _ string, status domain.StageStatus, _ *StageOutput, _ error) {
	if o.finished == nil {
		o.finished = map[domain.StageStatus]int{}
	}
	o.finished[status]++
}
