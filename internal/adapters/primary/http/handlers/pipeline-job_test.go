package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mlops-pipeline/internal/adapters/secondary/sqlite"
	"mlops-pipeline/internal/adapters/secondary/storage"
	"mlops-pipeline/internal/core/domain"
	"mlops-pipeline/internal/core/services"
	"mlops-pipeline/internal/pipeline/executor"
	"mlops-pipeline/internal/pipelinespec"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvingComponents stands in for the real stages: evaluation reports a
// fixed accuracy and the gate decides on it.
func approvingComponents(accuracy float64) executor.Registry {
	noop := executor.ComponentFunc(func(context.Context, *executor.StageInput) (*executor.StageOutput, error) {
		return &executor.StageOutput{}, nil
	})
	return executor.Registry{
		pipelinespec.ComponentDataSplit: noop,
		pipelinespec.ComponentModelFit:  noop,
		pipelinespec.ComponentModelEvaluate: executor.ComponentFunc(func(_ context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
			threshold, err := in.Float(pipelinespec.InputMinAccuracy)
			if err != nil {
				return nil, err
			}
			return &executor.StageOutput{Metrics: domain.EvaluationResult{Accuracy: accuracy, Threshold: threshold}.Metrics()}, nil
		}),
		pipelinespec.ComponentApprovalGate: executor.ComponentFunc(func(_ context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
			acc, _ := in.Float(pipelinespec.InputAccuracy)
			threshold, _ := in.Float(pipelinespec.InputMinAccuracy)
			return &executor.StageOutput{Decision: domain.Decide(domain.EvaluationResult{Accuracy: acc, Threshold: threshold}, domain.ModelArtifact{})}, nil
		}),
		pipelinespec.ComponentModelApproved: noop,
		pipelinespec.ComponentModelRegister: noop,
		pipelinespec.ComponentModelReject: executor.ComponentFunc(func(_ context.Context, in *executor.StageInput) (*executor.StageOutput, error) {
			return nil, in.Decision.(domain.Rejected).Err()
		}),
	}
}

func setupPipelineRouter(t *testing.T) (*services.PipelineRunService, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	runSvc := services.NewPipelineRunService(sqlite.NewRunRepository(db), approvingComponents(0.92),
		storage.NewArtifactStore(root), nil, root)

	h := New(nil, nil, runSvc)
	r := gin.New()
	h.RegisterPipelineRoutes(r.Group("/api/v1/pipeline-jobs"))
	return runSvc, r
}

func postJob(r *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/api/v1/pipeline-jobs", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jobParameters() map[string]interface{} {
	return map[string]interface{}{
		"project_id":             "my-project",
		"region":                 "us-central1",
		"model_display_name":     "diabetes-model",
		"input_raw_data_gcs_uri": "gs://bucket/diabetes.csv",
		"min_accuracy":           0.8,
	}
}

func TestCreatePipelineJob_BuiltinDefinition(t *testing.T) {
	runSvc, r := setupPipelineRouter(t)

	w := postJob(r, map[string]interface{}{
		"display_name":     "diabetes-run",
		"pipeline":         "prod",
		"parameter_values": jobParameters(),
		"labels":           map[string]string{"team": "ml"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, pipelinespec.ProdPipelineName, created["pipeline_name"])
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, "local", created["runtime"])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, runSvc.Shutdown(ctx))

	req, _ := http.NewRequest("GET", "/api/v1/pipeline-jobs/"+created["id"].(string), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "SUCCEEDED", got["status"])
	assert.Equal(t, "approved", got["outcome"])
	assert.Len(t, got["stages"], 7)
	assert.Equal(t, "0.8", got["parameters"].(map[string]interface{})["min_accuracy"])
}

func TestCreatePipelineJob_CompiledSpec(t *testing.T) {
	runSvc, r := setupPipelineRouter(t)

	compiled, err := pipelinespec.Marshal(pipelinespec.Dev())
	require.NoError(t, err)
	params := jobParameters()
	params["min_accuracy"] = 0.95

	w := postJob(r, map[string]interface{}{
		"pipeline_spec":    string(compiled),
		"parameter_values": params,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, runSvc.Shutdown(ctx))

	req, _ := http.NewRequest("GET", "/api/v1/pipeline-jobs?status=FAILED", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, float64(1), list["total"])
	job := list["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "rejected", job["outcome"])
	assert.Equal(t, pipelinespec.StageReject, job["failed_stage"])
	assert.Contains(t, job["error"], "0.92")
	assert.Contains(t, job["error"], "0.95")
}

func TestCreatePipelineJob_BadRequests(t *testing.T) {
	_, r := setupPipelineRouter(t)

	tests := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{"no spec", map[string]interface{}{"parameter_values": jobParameters()}, http.StatusBadRequest},
		{"both specs", map[string]interface{}{"pipeline": "dev", "pipeline_spec": "x", "parameter_values": jobParameters()}, http.StatusBadRequest},
		{"unknown pipeline", map[string]interface{}{"pipeline": "staging", "parameter_values": jobParameters()}, http.StatusBadRequest},
		{"missing parameter", map[string]interface{}{"pipeline": "dev", "parameter_values": map[string]interface{}{"region": "eu"}}, http.StatusBadRequest},
		{"malformed spec", map[string]interface{}{"pipeline_spec": "stages: [", "parameter_values": jobParameters()}, http.StatusBadRequest},
		{"kubernetes disabled", map[string]interface{}{"pipeline": "dev", "runtime": "kubernetes", "parameter_values": jobParameters()}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJob(r, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestCreatePipelineJob_AfterShutdown(t *testing.T) {
	runSvc, r := setupPipelineRouter(t)
	require.NoError(t, runSvc.Shutdown(context.Background()))

	w := postJob(r, map[string]interface{}{"pipeline": "dev", "parameter_values": jobParameters()})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "shutting down")
}

func TestGetPipelineJob_NotFound(t *testing.T) {
	_, r := setupPipelineRouter(t)

	req, _ := http.NewRequest("GET", "/api/v1/pipeline-jobs/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
