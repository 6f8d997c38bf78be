package handlers

import (
	"net/http"

	"mlops-pipeline/internal/adapters/primary/http/dto"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListModels(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	filter := ports.ListFilter{
		Project:     c.Query("project"),
		Region:      c.Query("region"),
		DisplayName: c.Query("display_name"),
		State:       c.Query("state"),
		SortBy:      c.Query("sort_by"),
		Order:       c.Query("order"),
		Limit:       limit,
		Offset:      offset,
	}

	models, total, err := h.modelSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list models failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RegisteredModelResponse, 0, len(models))
	for _, m := range models {
		items = append(items, dto.ToRegisteredModelResponse(m))
	}

	c.JSON(http.StatusOK, dto.ListRegisteredModelsResponse{
		Items:      items,
		Total:      total,
		PageSize:   services.PageSize(limit),
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetModel(c *gin.Context) {
	model, err := h.modelSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRegisteredModelResponse(model))
}
