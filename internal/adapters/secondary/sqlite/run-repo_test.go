package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlops-pipeline/internal/core/domain"
	output "mlops-pipeline/internal/core/ports/output"
)

func newRepo(t *testing.T) output.RunRepository {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunRepository(db)
}

func newRun(id string, created time.Time) *domain.PipelineRun {
	return &domain.PipelineRun{
		ID:            id,
		JobID:         domain.JobID("diabetes-run", created),
		PipelineName:  "mlops-diabetes-dev-pipeline",
		DisplayName:   "diabetes-run",
		Status:        domain.RunStatusPending,
		Parameters:    map[string]string{"min_accuracy": "0.7"},
		Labels:        map[string]string{"team": "ml"},
		EnableCaching: true,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestRunRepo_CreateGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRun("r1", created)))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "diabetes-run-20260301100000", got.JobID)
	assert.Equal(t, domain.RunStatusPending, got.Status)
	assert.Equal(t, map[string]string{"min_accuracy": "0.7"}, got.Parameters)
	assert.True(t, got.EnableCaching)
	assert.True(t, created.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunRepo_StagesAndMetrics(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newRun("r1", now)))

	require.NoError(t, repo.SaveStage(ctx, "r1", domain.StageRun{Stage: "preprocess", Status: domain.StageStatusRunning, StartedAt: &now}))
	later := now.Add(time.Second)
	require.NoError(t, repo.SaveStage(ctx, "r1", domain.StageRun{Stage: "preprocess", Status: domain.StageStatusSucceeded, FinishedAt: &later}))
	require.NoError(t, repo.SaveStage(ctx, "r1", domain.StageRun{Stage: "register", Status: domain.StageStatusSkipped}))
	require.NoError(t, repo.AddMetric(ctx, "r1", domain.Metric{Stage: "evaluate", Name: "accuracy", Value: 0.92}))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, domain.StageStatusSucceeded, got.Stages[0].Status)
	require.NotNil(t, got.Stages[0].StartedAt)
	assert.True(t, now.Equal(*got.Stages[0].StartedAt))
	require.NotNil(t, got.Stages[0].FinishedAt)
	assert.Nil(t, got.Stages[1].StartedAt)
	assert.Equal(t, []domain.Metric{{Stage: "evaluate", Name: "accuracy", Value: 0.92}}, got.Metrics)
}

func TestRunRepo_UpdateStatusAndList(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newRun("r1", base)))
	require.NoError(t, repo.Create(ctx, newRun("r2", base.Add(time.Minute))))

	run := newRun("r1", base)
	run.Status = domain.RunStatusFailed
	run.Outcome = domain.OutcomeRejected
	run.FailedStage = "reject"
	run.Error = "model rejected"
	run.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, repo.UpdateStatus(ctx, run))

	runs, total, err := repo.List(ctx, output.RunListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)

	runs, total, err = repo.List(ctx, output.RunListFilter{Status: string(domain.RunStatusFailed)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "reject", runs[0].FailedStage)
	assert.Equal(t, domain.OutcomeRejected, runs[0].Outcome)

	missing := newRun("nope", base)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, missing), domain.ErrRunNotFound)
}
