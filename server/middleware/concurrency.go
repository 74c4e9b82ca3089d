package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/resilience"
)

// ConcurrencyLimit runs the rest of the chain inside bulkhead, answering
// 429 when no slot frees up in time.
func ConcurrencyLimit(bulkhead *resilience.Bulkhead) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := bulkhead.Execute(c.Request.Context(), func() error {
			c.Next()
			return nil
		})
		switch {
		case err == nil:
		case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrBulkheadTimeout):
			appErr := apperrors.RateLimited().WithDetail("max_concurrent", bulkhead.MaxConcurrent())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
		default:
			appErr := apperrors.Canceled(err)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
		}
	}
}
