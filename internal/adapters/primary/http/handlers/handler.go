package handlers

import (
	"mlops-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	modelSvc   *services.RegisteredModelService
	versionSvc *services.ModelVersionService
	runSvc     *services.PipelineRunService
}

func New(
	modelSvc *services.RegisteredModelService,
	versionSvc *services.ModelVersionService,
	runSvc *services.PipelineRunService,
) *Handler {
	return &Handler{
		modelSvc:   modelSvc,
		versionSvc: versionSvc,
		runSvc:     runSvc,
	}
}

// RegisterRoutes mounts the read-only registry API.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Registered Models
	r.GET("/models", h.ListModels)
	r.GET("/models/:id", h.GetModel)

	// Model Versions (nested under model)
	r.GET("/models/:id/versions", h.ListModelVersions)

	// Model Versions (direct access)
	r.GET("/model_versions/:id", h.GetModelVersion)
}

// RegisterPipelineRoutes mounts the pipeline job API.
func (h *Handler) RegisterPipelineRoutes(r *gin.RouterGroup) {
	r.POST("", h.CreatePipelineJob)
	r.GET("", h.ListPipelineJobs)
	r.GET("/:id", h.GetPipelineJob)
}
