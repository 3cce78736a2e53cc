package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/rectpose/internal/ingress"
	"github.com/example/rectpose/internal/pose"
)

// ServiceName identifies this service in health responses.
const ServiceName = "rectpose-vision-backend"

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc *ingress.Service) {
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
	})

	router.POST("/api/pose/send", func(c *gin.Context) {
		var payload pose.Payload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid pose payload"})
			return
		}

		record, err := svc.Submit(c.Request.Context(), &payload)
		if err != nil {
			var vErr *pose.ValidationError
			if errors.As(err, &vErr) {
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid pose payload"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "receivedAt": record.ReceivedAt})
	})

	router.GET("/api/pose/latest", func(c *gin.Context) {
		record, err := svc.Latest(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
			return
		}
		if record == nil {
			c.JSON(http.StatusOK, gin.H{"status": "empty", "message": "No pose received yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pose": record})
	})
}

// corsMiddleware lets a browser operator console talk to the API directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
