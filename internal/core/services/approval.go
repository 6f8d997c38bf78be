package services

import (
	"context"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
)

// ApprovalService resolves the gate and runs its two terminal branches.
type ApprovalService struct{}

func NewApprovalService() *ApprovalService {
	return &ApprovalService{}
}

// Decide evaluates the gate once on the exact accuracy value.
func (s *ApprovalService) Decide(result domain.EvaluationResult, model domain.ModelArtifact) domain.ApprovalDecision {
	d := domain.Decide(result, model)
	log.WithFields(log.Fields{
		"accuracy":  result.Accuracy,
		"threshold": result.Threshold,
		"outcome":   d.Outcome(),
	}).Info("approval gate decided")
	return d
}

// Approve logs the approval. A zero d means the stage ran without the gate's
// outputs, so only the event itself is logged.
func (s *ApprovalService) Approve(_ context.Context, d domain.Approved) {
	entry := log.NewEntry(log.StandardLogger())
	if d.Model.URI != "" {
		entry = entry.WithFields(log.Fields{
			"accuracy":  d.Accuracy,
			"model_uri": d.Model.URI,
		})
	}
	entry.Info("model approved, proceeding with registration")
}

// Reject always fails: the returned error matches domain.ErrModelRejected and
// unwraps to a *domain.RejectionError.
func (s *ApprovalService) Reject(_ context.Context, d domain.Rejected) error {
	log.WithFields(log.Fields{
		"accuracy":  d.Accuracy,
		"threshold": d.Threshold,
	}).Error("model rejected")
	return errors.WithHint(d.Err(), "the model did not reach the minimum accuracy; it was not registered")
}
