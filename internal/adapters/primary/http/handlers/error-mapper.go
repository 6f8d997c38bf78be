package handlers

import (
	"net/http"

	"mlops-pipeline/internal/core/domain"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrVersionNameConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrInvalidSpec),
		errors.Is(err, domain.ErrUnsupportedSchema),
		errors.Is(err, domain.ErrUnknownPipeline),
		errors.Is(err, domain.ErrMissingParameter),
		errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrInvalidParentModel),
		errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrMissingProject),
		errors.Is(err, domain.ErrMissingRegion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrRuntimeDisabled),
		errors.Is(err, domain.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
