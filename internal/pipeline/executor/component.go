package executor

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"mlops-pipeline/internal/core/domain"
)

// StageInput is everything a component sees of the run.
type StageInput struct {
	RunID      string
	Stage      string
	Parameters map[string]string
	// Artifacts maps an input slot to the URI an upstream stage wrote.
	Artifacts map[string]string
	// Outputs maps each declared output slot to the URI the stage must write.
	Outputs map[string]string
	// Decision is set for stages conditioned on a gate.
	Decision domain.ApprovalDecision
}

// StageOutput is what a component hands back to the executor.
type StageOutput struct {
	Metrics  map[string]float64
	Decision domain.ApprovalDecision
}

// Component runs one stage.
type Component interface {
	Run(ctx context.Context, in *StageInput) (*StageOutput, error)
}

type ComponentFunc func(ctx context.Context, in *StageInput) (*StageOutput, error)

func (f ComponentFunc) Run(ctx context.Context, in *StageInput) (*StageOutput, error) {
	return f(ctx, in)
}

// Registry binds component names used in a spec to implementations.
type Registry map[string]Component

// Param returns a required input.
func (in *StageInput) Param(name string) (string, error) {
	v, ok := in.Parameters[name]
	if !ok {
		return "", errors.Wrapf(domain.ErrInvalidParameter, "stage %q: input %q is not set", in.Stage, name)
	}
	return v, nil
}

// ParamOr returns an optional input.
func (in *StageInput) ParamOr(name, fallback string) string {
	if v, ok := in.Parameters[name]; ok {
		return v
	}
	return fallback
}

// Float parses a required numeric input.
func (in *StageInput) Float(name string) (float64, error) {
	v, err := in.Param(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, errors.Wrapf(domain.ErrInvalidParameter, "stage %q: input %q=%q is not a number", in.Stage, name, v)
	}
	return f, nil
}

// Artifact returns the URI bound to an input slot.
func (in *StageInput) Artifact(slot string) (string, error) {
	uri, ok := in.Artifacts[slot]
	if !ok || uri == "" {
		return "", errors.Wrapf(domain.ErrArtifactLoad, "stage %q: no artifact bound to %q", in.Stage, slot)
	}
	return uri, nil
}

// Output returns the URI an output slot must be written to.
func (in *StageInput) Output(slot string) (string, error) {
	uri, ok := in.Outputs[slot]
	if !ok || uri == "" {
		return "", errors.Wrapf(domain.ErrInvalidParameter, "stage %q: output %q is not declared", in.Stage, slot)
	}
	return uri, nil
}
