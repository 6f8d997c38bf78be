package domain

// Outcome names a branch of the approval gate.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

func (o Outcome) Valid() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// ApprovalDecision is either Approved or Rejected. The set of variants is
// closed: only this package can implement it.
type ApprovalDecision interface {
	Outcome() Outcome
	isApprovalDecision()
}

// Approved carries the model that may be registered.
type Approved struct {
	Model     ModelArtifact
	Accuracy  float64
	Threshold float64
}

// Rejected carries the values that caused the rejection.
type Rejected struct {
	Accuracy  float64
	Threshold float64
}

func (Approved) Outcome() Outcome { return OutcomeApproved }
func (Rejected) Outcome() Outcome { return OutcomeRejected }

func (Approved) isApprovalDecision() {}
func (Rejected) isApprovalDecision() {}

// Decide resolves the gate. Equality approves; anything that does not compare
// >= (including NaN) rejects.
func Decide(result EvaluationResult, model ModelArtifact) ApprovalDecision {
	if result.Accuracy >= result.Threshold {
		return Approved{Model: model, Accuracy: result.Accuracy, Threshold: result.Threshold}
	}
	return Rejected{Accuracy: result.Accuracy, Threshold: result.Threshold}
}

// Err converts a rejection into the terminal error the run fails with.
func (r Rejected) Err() error {
	return &RejectionError{Accuracy: r.Accuracy, Threshold: r.Threshold}
}
