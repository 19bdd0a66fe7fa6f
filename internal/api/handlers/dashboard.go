package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/application/reporting"
)

// DashboardHandler serves the aggregate reporting views.
type DashboardHandler struct {
	reporting *reporting.Service
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(reportingService *reporting.Service) *DashboardHandler {
	return &DashboardHandler{reporting: reportingService}
}

// Dashboard handles GET /api/dashboard.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	limit := ParseIntQuery(c, "limit", 20)

	dashboard, err := h.reporting.Dashboard(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// Stats handles GET /api/stats.
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.reporting.Stats(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
