package handlers

import (
	"net/http"
	"strings"

	"mlops-pipeline/internal/adapters/primary/http/dto"
	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/core/services"
	"mlops-pipeline/internal/pipelinespec"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) CreatePipelineJob(c *gin.Context) {
	var req dto.CreatePipelineJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec, err := specFromRequest(&req)
	if err != nil {
		mapDomainError(c, err)
		return
	}
	values, err := pipelinespec.ParameterValuesFromJSON(req.ParameterValues)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	run, err := h.runSvc.Submit(c.Request.Context(), services.CreateRunRequest{
		Spec:           spec,
		DisplayName:    req.DisplayName,
		Parameters:     values,
		Labels:         req.Labels,
		ServiceAccount: req.ServiceAccount,
		EnableCaching:  req.EnableCaching,
		Runtime:        domain.Runtime(req.Runtime),
	})
	if err != nil {
		log.WithError(err).Error("submit pipeline job failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.ToPipelineJobResponse(run))
}

func (h *Handler) ListPipelineJobs(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	runs, total, err := h.runSvc.List(c.Request.Context(), ports.RunListFilter{
		PipelineName: c.Query("pipeline_name"),
		Status:       c.Query("status"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		log.WithError(err).Error("list pipeline jobs failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.PipelineJobResponse, 0, len(runs))
	for _, r := range runs {
		items = append(items, dto.ToPipelineJobResponse(r))
	}

	c.JSON(http.StatusOK, dto.ListPipelineJobsResponse{
		Items:      items,
		Total:      total,
		PageSize:   services.PageSize(limit),
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetPipelineJob(c *gin.Context) {
	run, err := h.runSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPipelineJobResponse(run))
}

func specFromRequest(req *dto.CreatePipelineJobRequest) (*pipelinespec.PipelineSpec, error) {
	switch {
	case req.PipelineSpec != "" && req.Pipeline != "":
		return nil, errors.Wrap(domain.ErrInvalidSpec, "set either pipeline_spec or pipeline, not both")
	case req.PipelineSpec != "":
		return pipelinespec.Load(strings.NewReader(req.PipelineSpec))
	case req.Pipeline != "":
		return pipelinespec.Select(req.Pipeline)
	default:
		return nil, errors.Wrap(domain.ErrInvalidSpec, "pipeline_spec or pipeline is required")
	}
}
