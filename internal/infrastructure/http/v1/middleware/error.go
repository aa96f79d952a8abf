package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cafepos/internal/core/apperror"
	"cafepos/internal/infrastructure/http/v1/dto"
	"cafepos/pkg/logger"
)

// ErrorHandler renders the last error of the request as JSON.
// Internal causes are logged, never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		renderError(c)
	}
}

// renderError writes the error response unless something was already written.
func renderError(c *gin.Context) {
	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	err := c.Errors.Last().Err
	ctx := c.Request.Context()

	if appErr, ok := apperror.AsAppError(err); ok {
		status := apperror.Status(appErr)
		if appErr.Err != nil || status >= http.StatusInternalServerError {
			logger.Error(ctx, "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}
		c.JSON(status, dto.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}

	logger.Error(ctx, "unhandled error", "error", err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
		Code:    apperror.CodeInternal,
		Message: "Internal server error",
		Details: map[string]any{"request_id": c.GetString("request_id")},
	})
}
