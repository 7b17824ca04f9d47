package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"message": "CodeSync Backend is running",
	})
}

// Root describes the service surface for anyone hitting the bare origin.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "CodeSync Backend API",
		"endpoints": gin.H{
			"health":    "/health",
			"execute":   "/api/execute",
			"websocket": "/ws",
		},
	})
}
