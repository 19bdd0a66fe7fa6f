package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/api/dto"
)

// HealthHandler serves the load-balancer health check.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Get handles GET /api/health.
func (h *HealthHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Service: "bank-reconciliation-backend",
	})
}
