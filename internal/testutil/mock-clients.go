package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	ports "mlops-pipeline/internal/core/ports/output"
)

// MockObjectStore is a mock of ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Fetch(ctx context.Context, src, dst string) (string, error) {
	args := m.Called(ctx, src, dst)
	return args.String(0), args.Error(1)
}

// MockWorkflowSubmitter is a mock of WorkflowSubmitter.
type MockWorkflowSubmitter struct {
	mock.Mock
}

func (m *MockWorkflowSubmitter) Submit(ctx context.Context, job *ports.WorkflowJob) (*ports.WorkflowSubmission, error) {
	args := m.Called(ctx, job)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.WorkflowSubmission), args.Error(1)
}

func (m *MockWorkflowSubmitter) Phase(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockWorkflowSubmitter) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}
