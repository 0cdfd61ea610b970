package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/worker"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/database"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/redis"
)

// HealthHandler exposes liveness, readiness, and reaper stats
type HealthHandler struct {
	db     *database.PostgresDB
	cache  *redis.Client
	reaper *worker.ExpiryReaper
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *database.PostgresDB, cache *redis.Client, reaper *worker.ExpiryReaper) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, reaper: reaper}
}

// Live handles GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. Redis degradation is reported but not
// fatal: the idempotency layer fails open without it.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	checks := gin.H{}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["postgres"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "degraded: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status": http.StatusText(status),
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

// ReaperStats handles GET /health/reaper
func (h *HealthHandler) ReaperStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.reaper.GetStats())
}
