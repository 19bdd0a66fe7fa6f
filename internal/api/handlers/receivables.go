package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/api/dto"
	"bank-reconciliation-backend/internal/application/importer"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

// ReceivablesHandler serves the open receivable snapshot and its loading
// endpoint.
type ReceivablesHandler struct {
	pipeline *importer.Pipeline
	repo     storage.Repository
}

// NewReceivablesHandler creates a new receivables handler.
func NewReceivablesHandler(pipeline *importer.Pipeline, repo storage.Repository) *ReceivablesHandler {
	return &ReceivablesHandler{pipeline: pipeline, repo: repo}
}

// List handles GET /api/receivables.
func (h *ReceivablesHandler) List(c *gin.Context) {
	var filters storage.ReceivableFilters

	if from, ok := parseDateQuery(c, "date_from"); ok {
		filters.DateFrom = &from
	}
	if to, ok := parseDateQuery(c, "date_to"); ok {
		filters.DateTo = &to
	}
	if min := c.Query("min_amount"); min != "" {
		if parsed, err := strconv.ParseFloat(min, 64); err == nil {
			filters.MinAmount = &parsed
		}
	}
	if max := c.Query("max_amount"); max != "" {
		if parsed, err := strconv.ParseFloat(max, 64); err == nil {
			filters.MaxAmount = &parsed
		}
	}

	receivables, err := h.repo.ListOpenReceivables(c.Request.Context(), filters)
	if err != nil {
		RespondError(c, err)
		return
	}

	if receivables == nil {
		receivables = []ledger.OpenReceivable{}
	}
	c.JSON(http.StatusOK, dto.ReceivableListResponse{Receivables: receivables, Count: len(receivables)})
}

// Sync handles POST /api/receivables/sync.
func (h *ReceivablesHandler) Sync(c *gin.Context) {
	var req dto.ReceivableSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	receivables := make([]ledger.OpenReceivable, 0, len(req.Receivables))
	for _, payload := range req.Receivables {
		receivables = append(receivables, payload.ToLedger())
	}

	loaded, err := h.pipeline.LoadReceivables(c.Request.Context(), receivables)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SyncResponse{Loaded: loaded})
}
