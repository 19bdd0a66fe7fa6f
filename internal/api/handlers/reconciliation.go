package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bank-reconciliation-backend/internal/api/dto"
	"bank-reconciliation-backend/internal/application/importer"
	"bank-reconciliation-backend/internal/application/workflow"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/scoring"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

// ReconciliationHandler handles import batches, record decisions and record
// listing.
type ReconciliationHandler struct {
	pipeline *importer.Pipeline
	workflow *workflow.Workflow
	repo     storage.Repository
	defaults importer.Options
}

// NewReconciliationHandler creates a new reconciliation handler. defaults
// holds the configured engine parameters used when a request leaves them
// unset.
func NewReconciliationHandler(pipeline *importer.Pipeline, wf *workflow.Workflow, repo storage.Repository, defaults importer.Options) *ReconciliationHandler {
	return &ReconciliationHandler{
		pipeline: pipeline,
		workflow: wf,
		repo:     repo,
		defaults: defaults,
	}
}

// Import handles POST /api/reconciliation/import.
func (h *ReconciliationHandler) Import(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	movements := make([]ledger.BankMovement, 0, len(req.Movements))
	for _, payload := range req.Movements {
		movements = append(movements, payload.ToLedger())
	}

	opts := h.defaults
	if len(req.Algorithms) > 0 {
		opts.Algorithms = make([]scoring.Algorithm, 0, len(req.Algorithms))
		for _, alg := range req.Algorithms {
			opts.Algorithms = append(opts.Algorithms, scoring.Algorithm(alg))
		}
	}
	if req.MinScore > 0 {
		opts.MinScore = req.MinScore
	}
	if req.MaxMatches > 0 {
		opts.MaxMatches = req.MaxMatches
	}
	opts.DateFrom = req.DateFrom
	opts.DateTo = req.DateTo
	opts.MinAmount = req.MinAmount
	opts.UserID = req.UserID

	result, err := h.pipeline.RunImport(c.Request.Context(), movements, opts)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ImportResponse{
		RunID:    result.RunID,
		Stats:    result.Stats,
		Outcomes: result.Outcomes,
	})
}

// Approve handles POST /api/reconciliation/:id/approve.
func (h *ReconciliationHandler) Approve(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	record, err := h.workflow.Approve(c.Request.Context(), c.Param("id"), req.UserID, req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Reject handles POST /api/reconciliation/:id/reject.
func (h *ReconciliationHandler) Reject(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	record, err := h.workflow.Reject(c.Request.Context(), c.Param("id"), req.UserID, req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Manual handles POST /api/reconciliation/manual.
func (h *ReconciliationHandler) Manual(c *gin.Context) {
	var req dto.ManualReconciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	record, err := h.workflow.ManualReconciliation(c.Request.Context(),
		req.MovementExternalID, req.ReceivableID, req.UserID, req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// List handles GET /api/reconciliation.
func (h *ReconciliationHandler) List(c *gin.Context) {
	filters := storage.RecordFilters{
		Status:             ledger.RecordStatus(c.Query("status")),
		MatchType:          ledger.MatchType(c.Query("match_type")),
		MovementExternalID: c.Query("movement_id"),
		Limit:              ParseIntQuery(c, "limit", 100),
		Offset:             ParseIntQuery(c, "offset", 0),
	}

	records, err := h.repo.ListReconciliationRecords(c.Request.Context(), filters)
	if err != nil {
		RespondError(c, err)
		return
	}

	if records == nil {
		records = []ledger.ReconciliationRecord{}
	}
	c.JSON(http.StatusOK, dto.RecordListResponse{Records: records, Count: len(records)})
}

// Get handles GET /api/reconciliation/:id.
func (h *ReconciliationHandler) Get(c *gin.Context) {
	record, err := h.repo.GetReconciliationRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("reconciliation record"))
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListRuns handles GET /api/reconciliation/runs.
func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	limit := ParseIntQuery(c, "limit", 20)

	runs, err := h.repo.ListImportRuns(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, err)
		return
	}

	if runs == nil {
		runs = []storage.ImportRun{}
	}
	c.JSON(http.StatusOK, dto.ImportRunListResponse{Runs: runs, Count: len(runs)})
}
