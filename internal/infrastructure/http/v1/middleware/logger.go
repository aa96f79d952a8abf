package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cafepos/pkg/logger"
)

// Logger writes one access line per request after the handler chain ran,
// so the staff id set by Auth is included. Health check traffic is
// logged at debug; 5xx at error and 4xx at warn.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			kv = append(kv, "query", q)
		}
		if role := c.GetString("role"); role != "" {
			kv = append(kv, "role", role)
		}
		if last := c.Errors.Last(); last != nil {
			kv = append(kv, "error", last.Error())
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			l.Errorw("request", kv...)
		case status >= 400:
			l.Warnw("request", kv...)
		case strings.HasPrefix(c.Request.URL.Path, "/health"):
			l.Debugw("request", kv...)
		default:
			l.Infow("request", kv...)
		}
	}
}
