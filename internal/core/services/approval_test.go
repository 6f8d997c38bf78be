package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlops-pipeline/internal/core/domain"
)

func TestApprovalService_Decide(t *testing.T) {
	svc := NewApprovalService()
	model := domain.ModelArtifact{URI: "/root/run/train/model"}

	d := svc.Decide(domain.EvaluationResult{Accuracy: 0.92, Threshold: 0.8}, model)
	approved, ok := d.(domain.Approved)
	require.True(t, ok)
	assert.Equal(t, model, approved.Model)

	d = svc.Decide(domain.EvaluationResult{Accuracy: 0.8, Threshold: 0.8}, model)
	assert.Equal(t, domain.OutcomeApproved, d.Outcome())

	d = svc.Decide(domain.EvaluationResult{Accuracy: 0.92, Threshold: 0.95}, model)
	assert.Equal(t, domain.OutcomeRejected, d.Outcome())
}

func TestApprovalService_Approve(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	svc := NewApprovalService()

	svc.Approve(context.Background(), domain.Approved{
		Model:    domain.ModelArtifact{URI: "/root/run/train/model"},
		Accuracy: 0.92,
	})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, 0.92, entry.Data["accuracy"])
	assert.Equal(t, "/root/run/train/model", entry.Data["model_uri"])

	hook.Reset()
	svc.Approve(context.Background(), domain.Approved{})
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "model approved, proceeding with registration", entry.Message)
	assert.NotContains(t, entry.Data, "accuracy")
	assert.NotContains(t, entry.Data, "model_uri")
}

func TestApprovalService_Reject(t *testing.T) {
	svc := NewApprovalService()

	err := svc.Reject(context.Background(), domain.Rejected{Accuracy: 0.92, Threshold: 0.95})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrModelRejected)
	assert.Contains(t, err.Error(), "0.92")
	assert.Contains(t, err.Error(), "0.95")

	var rej *domain.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 0.92, rej.Accuracy)
	assert.Equal(t, 0.95, rej.Threshold)
	assert.NotEmpty(t, errors.GetAllHints(err))
}
