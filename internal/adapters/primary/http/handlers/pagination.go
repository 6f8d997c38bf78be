package handlers

import (
	"strconv"

	"mlops-pipeline/internal/core/domain"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
)

// pageParams reads the limit and offset query parameters. A missing limit
// is 0, which the services turn into their default page size.
func pageParams(c *gin.Context) (int, int, error) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		return 0, 0, errors.Wrapf(domain.ErrInvalidParameter, "limit %q is not an integer", c.Query("limit"))
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, errors.Wrapf(domain.ErrInvalidParameter, "offset %q must be a non-negative integer", c.Query("offset"))
	}
	return limit, offset, nil
}
