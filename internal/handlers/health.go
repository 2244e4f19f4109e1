package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/logging"
)

func HealthCheck(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := db.Ping(pingCtx); err != nil {
		logging.Logger.Error("health check failed", "err", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"message":   "Scrumboard is running",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
