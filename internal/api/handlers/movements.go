package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/api/dto"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

// MovementsHandler serves imported bank movements.
type MovementsHandler struct {
	repo storage.Repository
}

// NewMovementsHandler creates a new movements handler.
func NewMovementsHandler(repo storage.Repository) *MovementsHandler {
	return &MovementsHandler{repo: repo}
}

// List handles GET /api/movements.
func (h *MovementsHandler) List(c *gin.Context) {
	filters := storage.MovementFilters{
		Status: ledger.MovementStatus(c.Query("status")),
		Limit:  ParseIntQuery(c, "limit", 100),
		Offset: ParseIntQuery(c, "offset", 0),
	}

	if reconciled := c.Query("reconciled"); reconciled != "" {
		value := reconciled == "true" || reconciled == "1"
		filters.Reconciled = &value
	}
	if from, ok := parseDateQuery(c, "date_from"); ok {
		filters.DateFrom = &from
	}
	if to, ok := parseDateQuery(c, "date_to"); ok {
		filters.DateTo = &to
	}

	movements, err := h.repo.ListBankMovements(c.Request.Context(), filters)
	if err != nil {
		RespondError(c, err)
		return
	}

	if movements == nil {
		movements = []ledger.BankMovement{}
	}
	c.JSON(http.StatusOK, dto.MovementListResponse{Movements: movements, Count: len(movements)})
}

// Get handles GET /api/movements/:id.
func (h *MovementsHandler) Get(c *gin.Context) {
	movement, err := h.repo.GetBankMovement(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if movement == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("bank movement"))
		return
	}

	c.JSON(http.StatusOK, movement)
}

// parseDateQuery reads a query parameter as either RFC3339 or YYYY-MM-DD.
func parseDateQuery(c *gin.Context, name string) (time.Time, bool) {
	val := c.Query(name)
	if val == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return t, true
	}
	return time.Time{}, false
}
