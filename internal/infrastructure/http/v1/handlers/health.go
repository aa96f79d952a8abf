package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cafepos/internal/infrastructure/storage/postgres"
)

const readyTimeout = 2 * time.Second

// Pinger is an optional dependency checked by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the /health endpoints.
type HealthHandler struct {
	pool  *postgres.Pool
	cache Pinger
}

// NewHealthHandler creates the handler. cache may be nil.
func NewHealthHandler(pool *postgres.Pool, cache Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, cache: cache}
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. Only the database gates readiness; a
// dead cache or a saturated pool is reported as degraded.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	checks := gin.H{}
	if err := h.pool.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "checks": checks})
		return
	}
	checks["database"] = "healthy"

	status := "ok"
	if h.pool.Stats().Saturated() {
		checks["pool"] = "degraded: all connections in use"
		status = "degraded"
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = "degraded: " + err.Error()
			status = "degraded"
		} else {
			checks["cache"] = "healthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}

// Info handles GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":      "cafepos",
		"version":  "0.1.0",
		"database": h.pool.Stats(),
	})
}
