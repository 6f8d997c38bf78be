package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/pipeline/executor"
	"mlops-pipeline/internal/pipelinespec"
)

// CreateRunRequest is a compiled pipeline plus the values to run it with.
type CreateRunRequest struct {
	Spec           *pipelinespec.PipelineSpec
	DisplayName    string
	Parameters     map[string]string
	Labels         map[string]string
	ServiceAccount string
	EnableCaching  bool
	Runtime        domain.Runtime
}

// PipelineRunService creates, executes and tracks pipeline runs. Local runs
// go through the in-process executor; kubernetes runs are handed to the
// workflow submitter.
type PipelineRunService struct {
	runs         ports.RunRepository
	submitter    ports.WorkflowSubmitter
	executor     *executor.Executor
	pipelineRoot string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewPipelineRunService(runs ports.RunRepository, components executor.Registry, artifacts ports.ArtifactStore,
	submitter ports.WorkflowSubmitter, pipelineRoot string) *PipelineRunService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PipelineRunService{
		runs:         runs,
		submitter:    submitter,
		pipelineRoot: pipelineRoot,
		ctx:          ctx,
		cancel:       cancel,
	}
	s.executor = executor.New(components, artifacts, executor.WithObserver(s))
	return s
}

// Create validates the request and records a pending run.
func (s *PipelineRunService) Create(ctx context.Context, req CreateRunRequest) (*domain.PipelineRun, error) {
	if req.Spec == nil {
		return nil, errors.Wrap(domain.ErrInvalidSpec, "pipeline spec is required")
	}
	if err := req.Spec.Validate(); err != nil {
		return nil, err
	}
	params, err := req.Spec.ResolveParameters(req.Parameters)
	if err != nil {
		return nil, err
	}

	runtime := req.Runtime
	if runtime == "" {
		runtime = domain.RuntimeLocal
	}
	if !runtime.Valid() {
		return nil, errors.Wrapf(domain.ErrInvalidParameter, "unknown runtime %q", runtime)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Spec.Pipeline.Name
	}

	now := time.Now().UTC()
	run := &domain.PipelineRun{
		ID:             uuid.NewString(),
		JobID:          domain.JobID(displayName, now),
		PipelineName:   req.Spec.Pipeline.Name,
		DisplayName:    displayName,
		ServiceAccount: req.ServiceAccount,
		Runtime:        runtime,
		Status:         domain.RunStatusPending,
		Parameters:     params,
		Labels:         copyLabels(req.Labels),
		EnableCaching:  req.EnableCaching,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"run_id":   run.ID,
		"job_id":   run.JobID,
		"pipeline": run.PipelineName,
		"runtime":  run.Runtime,
	}).Info("pipeline run created")
	return run, nil
}

// Execute runs a created run to completion in-process. The returned run is
// the stored state after the last stage, and err is the run's failure.
func (s *PipelineRunService) Execute(ctx context.Context, run *domain.PipelineRun, spec *pipelinespec.PipelineSpec) (*domain.PipelineRun, error) {
	run.Status = domain.RunStatusRunning
	run.UpdatedAt = time.Now().UTC()
	if err := s.runs.UpdateStatus(ctx, run); err != nil {
		return nil, err
	}

	result, runErr := s.executor.Run(ctx, run.ID, spec, run.Parameters)

	run.Outcome = result.Outcome()
	run.UpdatedAt = time.Now().UTC()
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
		var se *executor.StageError
		if errors.As(runErr, &se) {
			run.FailedStage = se.Stage
		}
	} else {
		run.Status = domain.RunStatusSucceeded
	}

	logger := log.WithFields(log.Fields{"run_id": run.ID, "status": run.Status, "outcome": run.Outcome})
	if runErr != nil {
		logger.WithError(runErr).Error("pipeline run failed")
	} else {
		logger.Info("pipeline run finished")
	}

	store := context.WithoutCancel(ctx)
	if err := s.runs.UpdateStatus(store, run); err != nil {
		return run, errors.CombineErrors(runErr, err)
	}
	if stored, err := s.runs.Get(store, run.ID); err == nil {
		run = stored
	}
	return run, runErr
}

// Run creates and executes a local run synchronously.
func (s *PipelineRunService) Run(ctx context.Context, req CreateRunRequest) (*domain.PipelineRun, error) {
	req.Runtime = domain.RuntimeLocal
	run, err := s.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, run, req.Spec)
}

// Submit creates a run and starts it without waiting. Local runs execute on
// a background goroutine that outlives the request; Shutdown waits for them.
// Once Shutdown has begun, local submissions fail with domain.ErrShuttingDown.
func (s *PipelineRunService) Submit(ctx context.Context, req CreateRunRequest) (*domain.PipelineRun, error) {
	if req.Runtime != domain.RuntimeKubernetes && s.isClosed() {
		return nil, domain.ErrShuttingDown
	}
	if req.Runtime == domain.RuntimeKubernetes && (s.submitter == nil || !s.submitter.IsAvailable()) {
		return nil, errors.Wrap(domain.ErrRuntimeDisabled, string(domain.RuntimeKubernetes))
	}

	run, err := s.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if run.Runtime == domain.RuntimeKubernetes {
		return s.submitWorkflow(ctx, run, req.Spec)
	}

	accepted := *run
	if !s.track() {
		s.abandon(ctx, run)
		return nil, domain.ErrShuttingDown
	}
	go func() {
		defer s.wg.Done()
		_, _ = s.Execute(s.ctx, run, req.Spec)
	}()
	return &accepted, nil
}

// track registers a background run with Shutdown. It reports false once
// Shutdown has begun.
func (s *PipelineRunService) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *PipelineRunService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// abandon marks a run that was recorded but never started.
func (s *PipelineRunService) abandon(ctx context.Context, run *domain.PipelineRun) {
	run.Status = domain.RunStatusFailed
	run.Error = domain.ErrShuttingDown.Error()
	run.UpdatedAt = time.Now().UTC()
	if err := s.runs.UpdateStatus(ctx, run); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("failed to record abandoned run")
	}
}

func (s *PipelineRunService) submitWorkflow(ctx context.Context, run *domain.PipelineRun, spec *pipelinespec.PipelineSpec) (*domain.PipelineRun, error) {
	sub, err := s.submitter.Submit(ctx, &ports.WorkflowJob{
		JobID:          run.JobID,
		Spec:           spec,
		Parameters:     run.Parameters,
		Labels:         run.Labels,
		ServiceAccount: run.ServiceAccount,
		PipelineRoot:   s.pipelineRoot,
		EnableCaching:  run.EnableCaching,
	})
	run.UpdatedAt = time.Now().UTC()
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		if uerr := s.runs.UpdateStatus(ctx, run); uerr != nil {
			log.WithError(uerr).WithField("run_id", run.ID).Warn("failed to record submission failure")
		}
		return nil, err
	}

	run.Status = domain.RunStatusRunning
	if err := s.runs.UpdateStatus(ctx, run); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"run_id":    run.ID,
		"workflow":  sub.Name,
		"namespace": sub.Namespace,
	}).Info("pipeline run submitted to kubernetes")
	return run, nil
}

// Get returns a run. A kubernetes run that has not finished is refreshed
// from the orchestrator first.
func (s *PipelineRunService) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Runtime != domain.RuntimeKubernetes || s.submitter == nil || !s.submitter.IsAvailable() {
		return run, nil
	}
	if run.Status == domain.RunStatusSucceeded || run.Status == domain.RunStatusFailed {
		return run, nil
	}

	phase, err := s.submitter.Phase(ctx, run.JobID)
	if err != nil {
		log.WithError(err).WithField("run_id", run.ID).Warn("failed to refresh workflow phase")
		return run, nil
	}
	status := statusFromPhase(phase)
	if status == run.Status {
		return run, nil
	}
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	if status == domain.RunStatusFailed {
		run.Error = "workflow " + run.JobID + " finished in phase " + phase
	}
	if err := s.runs.UpdateStatus(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PipelineRunService) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	filter.Limit = PageSize(filter.Limit)
	return s.runs.List(ctx, filter)
}

// Shutdown waits for background runs. If ctx ends first the runs are
// cancelled and Shutdown still waits for them to record their failure.
func (s *PipelineRunService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// StageStarted records a stage as running.
func (s *PipelineRunService) StageStarted(ctx context.Context, runID, stage string) {
	now := time.Now().UTC()
	if err := s.runs.SaveStage(context.WithoutCancel(ctx), runID, domain.StageRun{
		Stage:     stage,
		Status:    domain.StageStatusRunning,
		StartedAt: &now,
	}); err != nil {
		log.WithError(err).WithFields(log.Fields{"run_id": runID, "stage": stage}).Warn("failed to record stage start")
	}
}

// StageFinished records the final stage state and the metrics it logged.
func (s *PipelineRunService) StageFinished(ctx context.Context, runID, stage string, status domain.StageStatus, out *executor.StageOutput, stageErr error) {
	ctx = context.WithoutCancel(ctx)
	logger := log.WithFields(log.Fields{"run_id": runID, "stage": stage})

	now := time.Now().UTC()
	rec := domain.StageRun{Stage: stage, Status: status}
	if status != domain.StageStatusSkipped {
		rec.FinishedAt = &now
	}
	if stageErr != nil {
		rec.Error = stageErr.Error()
	}
	if err := s.runs.SaveStage(ctx, runID, rec); err != nil {
		logger.WithError(err).Warn("failed to record stage result")
	}

	if out == nil {
		return
	}
	for _, name := range metricNames(out.Metrics) {
		m := domain.Metric{Stage: stage, Name: name, Value: out.Metrics[name]}
		if err := s.runs.AddMetric(ctx, runID, m); err != nil {
			logger.WithError(err).WithField("metric", name).Warn("failed to record metric")
		}
	}
}

func statusFromPhase(phase string) domain.RunStatus {
	switch phase {
	case "Succeeded":
		return domain.RunStatusSucceeded
	case "Failed", "Error":
		return domain.RunStatusFailed
	case "Running":
		return domain.RunStatusRunning
	default:
		return domain.RunStatusPending
	}
}
