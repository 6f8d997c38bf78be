package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

// MockRegisteredModelRepo is a mock of RegisteredModelRepository.
type MockRegisteredModelRepo struct {
	mock.Mock
}

func (m *MockRegisteredModelRepo) GetByID(ctx context.Context, id string) (*domain.RegisteredModel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegisteredModel), args.Error(1)
}

func (m *MockRegisteredModelRepo) List(ctx context.Context, filter ports.ListFilter) ([]*domain.RegisteredModel, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.RegisteredModel), args.Int(1), args.Error(2)
}

// MockModelVersionRepo is a mock of ModelVersionRepository.
type MockModelVersionRepo struct {
	mock.Mock
}

func (m *MockModelVersionRepo) GetByID(ctx context.Context, id string) (*domain.ModelVersion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockModelVersionRepo) ListByModel(ctx context.Context, modelID string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	args := m.Called(ctx, modelID, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.ModelVersion), args.Int(1), args.Error(2)
}

// MockUploadRepo is a mock of ModelUploadRepository. Use Run on the
// expectation to assign the version name the way the real repository does.
type MockUploadRepo struct {
	mock.Mock
}

func (m *MockUploadRepo) CreateWithVersion(ctx context.Context, model *domain.RegisteredModel, version *domain.ModelVersion) error {
	args := m.Called(ctx, model, version)
	return args.Error(0)
}

func (m *MockUploadRepo) AppendVersion(ctx context.Context, modelID string, version *domain.ModelVersion) (int, error) {
	args := m.Called(ctx, modelID, version)
	return args.Int(0), args.Error(1)
}

// NameVersion is a Run func for either upload call: it names the version
// and points it at its model, as the real repository does.
func NameVersion(name string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		v := args.Get(2).(*domain.ModelVersion)
		v.Name = name
		switch owner := args.Get(1).(type) {
		case string:
			v.RegisteredModelID = owner
		case *domain.RegisteredModel:
			v.RegisteredModelID = owner.ID
		}
	}
}

// MockRunRepo is a mock of RunRepository.
type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineRun), args.Error(1)
}

func (m *MockRunRepo) List(ctx context.Context, filter ports.RunListFilter) ([]*domain.PipelineRun, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.PipelineRun), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) UpdateStatus(ctx context.Context, run *domain.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) SaveStage(ctx context.Context, runID string, stage domain.StageRun) error {
	args := m.Called(ctx, runID, stage)
	return args.Error(0)
}

func (m *MockRunRepo) AddMetric(ctx context.Context, runID string, metric domain.Metric) error {
	args := m.Called(ctx, runID, metric)
	return args.Error(0)
}
