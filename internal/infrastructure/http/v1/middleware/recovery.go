// Package middleware holds the gin middleware of the v1 API.
package middleware

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"cafepos/internal/core/apperror"
	"cafepos/pkg/logger"
)

// Recovery answers a handler panic with INTERNAL_ERROR and logs the stack
// with the request ids. Panics caused by a client hanging up are only
// aborted; there is nobody left to answer.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "handler panic",
			"panic", recovered,
			"route", c.FullPath(),
			"stack", string(debug.Stack()),
		)
		_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", recovered)))
		c.Abort()
		renderError(c)
	})
}
