package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthChecker is satisfied by database.Service.
type HealthChecker interface {
	Health() map[string]string
}

type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler accepts a nil checker for deployments without a database.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Health(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up", "store": "memory"})
		return
	}

	stats := h.checker.Health()
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
