// Package executor runs a pipelinespec DAG in-process, one stage at a time in
// topological order. Stages conditioned on a gate outcome that did not happen
// are skipped, and so is everything downstream of a skipped stage.
package executor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/pipelinespec"
)

// StageError reports which stage failed a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ArtifactLocator assigns the URI each stage output is written to.
type ArtifactLocator interface {
	URI(runID, stage, slot string) string
}

// Observer is notified as stages change state. Implementations must not
// block for long; they run on the executor goroutine.
type Observer interface {
	StageStarted(ctx context.Context, runID, stage string)
	StageFinished(ctx context.Context, runID, stage string, status domain.StageStatus, out *StageOutput, err error)
}

// StageResult is the final state of one stage.
type StageResult struct {
	Stage    string
	Status   domain.StageStatus
	Duration time.Duration
}

// Result summarizes a run, including a failed one.
type Result struct {
	Stages   []StageResult
	Metrics  []domain.Metric
	Decision domain.ApprovalDecision
}

// Outcome is the gate outcome, or "" if no gate decided.
func (r *Result) Outcome() domain.Outcome {
	if r.Decision == nil {
		return ""
	}
	return r.Decision.Outcome()
}

// Status returns the state a stage finished in.
func (r *Result) Status(stage string) (domain.StageStatus, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Status, true
		}
	}
	return "", false
}

type Executor struct {
	components Registry
	locator    ArtifactLocator
	observer   Observer
}

type Option func(*Executor)

func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

func New(components Registry, locator ArtifactLocator, opts ...Option) *Executor {
	e := &Executor{components: components, locator: locator}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes spec with the given parameter values. The returned Result is
// non-nil even when err is, and err is a *StageError when a stage failed.
func (e *Executor) Run(ctx context.Context, runID string, spec *pipelinespec.PipelineSpec, values map[string]string) (*Result, error) {
	result := &Result{}

	params, err := spec.ResolveParameters(values)
	if err != nil {
		return result, err
	}
	order, err := spec.TopologicalOrder()
	if err != nil {
		return result, err
	}

	var (
		status    = map[string]domain.StageStatus{}
		outputs   = map[string]map[string]string{}
		metrics   = map[string]map[string]float64{}
		decisions = map[string]domain.ApprovalDecision{}
	)

	for _, st := range order {
		logger := log.WithFields(log.Fields{"run_id": runID, "stage": st.Name})

		if err := ctx.Err(); err != nil {
			return result, &StageError{Stage: st.Name, Err: err}
		}

		skip, decision, err := e.gate(st, status, decisions)
		if err != nil {
			return result, &StageError{Stage: st.Name, Err: err}
		}
		if skip {
			status[st.Name] = domain.StageStatusSkipped
			result.Stages = append(result.Stages, StageResult{Stage: st.Name, Status: domain.StageStatusSkipped})
			e.finished(ctx, runID, st.Name, domain.StageStatusSkipped, nil, nil)
			logger.Info("stage skipped")
			continue
		}

		in, err := e.input(runID, st, params, outputs, metrics)
		if err != nil {
			return result, &StageError{Stage: st.Name, Err: err}
		}
		in.Decision = decision

		component, ok := e.components[st.Component]
		if !ok {
			return result, &StageError{Stage: st.Name, Err: errors.Wrapf(domain.ErrInvalidSpec, "no component %q", st.Component)}
		}

		if e.observer != nil {
			e.observer.StageStarted(ctx, runID, st.Name)
		}
		logger.WithField("component", st.Component).Info("stage started")
		start := time.Now()

		out, err := component.Run(ctx, in)
		elapsed := time.Since(start)
		if err != nil {
			status[st.Name] = domain.StageStatusFailed
			result.Stages = append(result.Stages, StageResult{Stage: st.Name, Status: domain.StageStatusFailed, Duration: elapsed})
			e.finished(ctx, runID, st.Name, domain.StageStatusFailed, nil, err)
			logger.WithError(err).WithField("duration_ms", elapsed.Milliseconds()).Error("stage failed")
			return result, &StageError{Stage: st.Name, Err: err}
		}
		if out == nil {
			out = &StageOutput{}
		}

		status[st.Name] = domain.StageStatusSucceeded
		outputs[st.Name] = in.Outputs
		metrics[st.Name] = out.Metrics
		for _, name := range sortedKeys(out.Metrics) {
			result.Metrics = append(result.Metrics, domain.Metric{Stage: st.Name, Name: name, Value: out.Metrics[name]})
		}
		if out.Decision != nil {
			decisions[st.Name] = out.Decision
			result.Decision = out.Decision
		}
		result.Stages = append(result.Stages, StageResult{Stage: st.Name, Status: domain.StageStatusSucceeded, Duration: elapsed})
		e.finished(ctx, runID, st.Name, domain.StageStatusSucceeded, out, nil)
		logger.WithField("duration_ms", elapsed.Milliseconds()).Info("stage succeeded")
	}
	return result, nil
}

// gate decides whether st runs and hands back the decision it is conditioned
// on.
func (e *Executor) gate(st *pipelinespec.StageSpec, status map[string]domain.StageStatus, decisions map[string]domain.ApprovalDecision) (bool, domain.ApprovalDecision, error) {
	for _, dep := range st.Dependencies() {
		if status[dep] == domain.StageStatusSkipped {
			return true, nil, nil
		}
	}
	if st.When == nil {
		return false, nil, nil
	}

	decision, ok := decisions[st.When.Stage]
	if !ok {
		return false, nil, errors.Wrapf(domain.ErrInvalidSpec, "stage %q made no decision", st.When.Stage)
	}

	var outcome domain.Outcome
	switch decision.(type) {
	case domain.Approved:
		outcome = domain.OutcomeApproved
	case domain.Rejected:
		outcome = domain.OutcomeRejected
	default:
		return false, nil, errors.Newf("unknown decision %T", decision)
	}
	if outcome != st.When.Outcome {
		return true, nil, nil
	}
	return false, decision, nil
}

func (e *Executor) input(runID string, st *pipelinespec.StageSpec, params map[string]string,
	outputs map[string]map[string]string, metrics map[string]map[string]float64) (*StageInput, error) {
	in := &StageInput{
		RunID:      runID,
		Stage:      st.Name,
		Parameters: make(map[string]string, len(st.Inputs)),
		Artifacts:  make(map[string]string, len(st.Artifacts)),
		Outputs:    make(map[string]string, len(st.Outputs)),
	}

	for key, v := range st.Inputs {
		if name, ok := pipelinespec.ParamName(v); ok {
			in.Parameters[key] = params[name]
			continue
		}
		if stage, metric, ok := pipelinespec.MetricSource(v); ok {
			val, ok := metrics[stage][metric]
			if !ok {
				return nil, errors.Wrapf(domain.ErrInvalidSpec, "stage %q logged no metric %q", stage, metric)
			}
			in.Parameters[key] = strconv.FormatFloat(val, 'g', -1, 64)
			continue
		}
		in.Parameters[key] = v
	}

	for slot, ref := range st.Artifacts {
		producer, out, _ := pipelinespec.SplitArtifactRef(ref)
		uri, ok := outputs[producer][out]
		if !ok {
			return nil, errors.Wrapf(domain.ErrArtifactLoad, "artifact %q was not produced", ref)
		}
		in.Artifacts[slot] = uri
	}

	for _, slot := range st.Outputs {
		in.Outputs[slot] = e.locator.URI(runID, st.Name, slot)
	}
	return in, nil
}

func (e *Executor) finished(ctx context.Context, runID, stage string, s domain.StageStatus, out *StageOutput, err error) {
	if e.observer != nil {
		e.observer.StageFinished(ctx, runID, stage, s, out, err)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
