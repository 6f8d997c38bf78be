package handlers

import (
	"net/http"

	"mlops-pipeline/internal/adapters/primary/http/dto"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) ListModelVersions(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	filter := ports.VersionListFilter{
		Status: c.Query("status"),
		SortBy: c.Query("sort_by"),
		Order:  c.Query("order"),
		Limit:  limit,
		Offset: offset,
	}

	versions, total, err := h.versionSvc.ListByModel(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		log.WithError(err).WithField("model_id", c.Param("id")).Error("list model versions failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.ModelVersionResponse, 0, len(versions))
	for _, v := range versions {
		items = append(items, dto.ToModelVersionResponse(v))
	}

	c.JSON(http.StatusOK, dto.ListModelVersionsResponse{
		Items:      items,
		Total:      total,
		PageSize:   services.PageSize(limit),
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetModelVersion(c *gin.Context) {
	version, err := h.versionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelVersionResponse(version))
}
