package middleware

import (
	"net/http"

	"serialfic-monetization/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error. BaseErrors keep their status and
// reason; anything else becomes a 500 without leaking the cause.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		if be, ok := errutil.As(last.Err); ok {
			if be.Code.HTTPStatus() >= http.StatusInternalServerError {
				zap.L().Error("request failed",
					zap.String("path", c.FullPath()),
					zap.String("request_id", RequestID(c)),
					zap.Error(last.Err),
				)
			}
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		zap.L().Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", RequestID(c)),
			zap.Error(last.Err),
		)
		internal := errutil.Internal("internal error", nil).(errutil.BaseError)
		c.JSON(http.StatusInternalServerError, internal.JSON())
	}
}
