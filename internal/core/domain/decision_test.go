package domain

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	model := ModelArtifact{URI: "/root/run/train/model/model.json", RegRate: 0.05}

	tests := []struct {
		name      string
		accuracy  float64
		threshold float64
		want      Outcome
	}{
		{"above", 0.92, 0.80, OutcomeApproved},
		{"equal approves", 0.80, 0.80, OutcomeApproved},
		{"below", 0.92, 0.95, OutcomeRejected},
		{"nan rejects", math.NaN(), 0.5, OutcomeRejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(EvaluationResult{Accuracy: tc.accuracy, Threshold: tc.threshold}, model)
			assert.Equal(t, tc.want, d.Outcome())
		})
	}
}

func TestDecide_CarriesModel(t *testing.T) {
	model := ModelArtifact{URI: "gs://bucket/run/model.json"}
	d := Decide(EvaluationResult{Accuracy: 0.9, Threshold: 0.7}, model)
	approved, ok := d.(Approved)
	require.True(t, ok)
	assert.Equal(t, model, approved.Model)
}

func TestRejectionError(t *testing.T) {
	err := Rejected{Accuracy: 0.92, Threshold: 0.95}.Err()
	assert.True(t, errors.Is(err, ErrModelRejected))
	assert.Contains(t, err.Error(), "0.92")
	assert.Contains(t, err.Error(), "0.95")

	wrapped := errors.Wrap(err, "stage reject")
	var rej *RejectionError
	require.True(t, errors.As(wrapped, &rej))
	assert.Equal(t, 0.95, rej.Threshold)
}

func TestRegistryUploadError(t *testing.T) {
	err := errors.Wrap(&RegistryUploadError{Err: errors.Wrap(ErrVersionNameConflict, "create model version")}, "stage register")

	assert.True(t, stderrors.Is(err, ErrRegistryUpload))
	assert.True(t, stderrors.Is(err, ErrVersionNameConflict))
	assert.True(t, errors.Is(err, ErrRegistryUpload))
	assert.True(t, errors.Is(err, ErrVersionNameConflict))
	assert.Contains(t, err.Error(), "registry upload failed: create model version")

	var upload *RegistryUploadError
	require.True(t, stderrors.As(err, &upload))
	assert.ErrorIs(t, upload.Err, ErrVersionNameConflict)
}

func TestParseParentModel(t *testing.T) {
	for ref, want := range map[string]string{
		"models/123": "123",
		"projects/p/locations/us-central1/models/abc": "abc",
		"123": "123",
	} {
		got, err := ParseParentModel(ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, got)
	}
	for _, ref := range []string{"", "models/", "projects/p"} {
		_, err := ParseParentModel(ref)
		assert.True(t, errors.Is(err, ErrInvalidParentModel), ref)
	}
}

func TestModelArtifactDir(t *testing.T) {
	assert.Equal(t, "gs://bucket/run/train", ModelArtifact{URI: "gs://bucket/run/train/model.json"}.Dir())
	assert.Equal(t, "model.json", ModelArtifact{URI: "model.json"}.Dir())
}
