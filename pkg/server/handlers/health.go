package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// ReadinessTimeout bounds the database test behind GET /ready.
const ReadinessTimeout = 5 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	pipeline Pipeline
	started  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(p Pipeline) *HealthHandler {
	return &HealthHandler{pipeline: p, started: time.Now()}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"service":    "noirgraph",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"go_version": GoVersion,
	})
}

// ReadinessCheck handles GET /ready by running the database test.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   "noirgraph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}

	if h.pipeline == nil {
		response["status"] = "not_ready"
		response["database"] = gin.H{"status": "unhealthy", "error": "pipeline not initialized"}
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ReadinessTimeout)
	defer cancel()

	start := time.Now()
	res := h.pipeline.TestDatabase(ctx)
	database := gin.H{
		"status":      "healthy",
		"message":     res.Message,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	response["database"] = database

	if !res.OK {
		database["status"] = "unhealthy"
		database["report"] = res.Report
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
