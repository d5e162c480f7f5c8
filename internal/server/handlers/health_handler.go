package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports liveness with the current server time.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "API is running",
		"timestamp": time.Now().UTC(),
	})
}
