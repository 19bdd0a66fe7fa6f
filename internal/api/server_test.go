package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-reconciliation-backend/internal/api/dto"
	"bank-reconciliation-backend/internal/application/importer"
	"bank-reconciliation-backend/internal/application/reporting"
	"bank-reconciliation-backend/internal/application/workflow"
	"bank-reconciliation-backend/internal/domain/ledger"
	"bank-reconciliation-backend/internal/domain/matching"
	"bank-reconciliation-backend/internal/domain/scoring"
	"bank-reconciliation-backend/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MockRepository) {
	t.Helper()

	store := storage.NewMockRepository()
	engine := matching.NewEngine(scoring.DefaultOptions())
	wf := workflow.NewWorkflow(store, nil, nil, workflow.DefaultConfig())
	pipeline := importer.NewPipeline(store, nil, engine, wf, nil)
	reportingService := reporting.NewService(store)

	server := NewServer(DefaultConfig(), Services{
		Pipeline:  pipeline,
		Workflow:  wf,
		Reporting: reportingService,
		Repo:      store,
	}, nil)
	return server, store
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func seedSnapshot(t *testing.T, server *Server) {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/api/receivables/sync", dto.ReceivableSyncRequest{
		Receivables: []dto.ReceivablePayload{
			{
				ID:            "rec-1",
				CustomerCode:  "C001",
				CustomerName:  "Acme SRL",
				DueDate:       time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
				Amount:        500.00,
				InvoiceNumber: "FT100",
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func importBatch(t *testing.T, server *Server) dto.ImportResponse {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/api/reconciliation/import", dto.ImportRequest{
		Movements: []dto.MovementPayload{
			{
				ExternalID:      "mov-1",
				TransactionDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
				Amount:          500.00,
				Description:     "BONIFICO ACME SRL FT100",
				Reference:       "FT100",
			},
		},
		UserID: "mario",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result dto.ImportResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ok"`)
}

func TestImportAndApproveFlow(t *testing.T) {
	server, store := newTestServer(t)
	seedSnapshot(t, server)

	result := importBatch(t, server)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 1, result.Stats.Matched)
	require.Len(t, result.Outcomes, 1)
	require.NotNil(t, result.Outcomes[0].Record)
	recordID := result.Outcomes[0].Record.ID

	// Approve through the API.
	resp := doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/api/reconciliation/%s/approve", recordID),
		dto.DecisionRequest{UserID: "mario", Notes: "ok"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	movement, err := store.GetBankMovement(context.Background(), "mov-1")
	require.NoError(t, err)
	assert.True(t, movement.Reconciled)

	// A second decision returns 409 invalid_state.
	resp = doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/api/reconciliation/%s/reject", recordID),
		dto.DecisionRequest{UserID: "luigi"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), dto.ErrCodeInvalidState)
}

func TestApprove_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost,
		"/api/reconciliation/missing/approve",
		dto.DecisionRequest{UserID: "mario"})

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), dto.ErrCodeNotFound)
}

func TestApprove_MissingUser(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost,
		"/api/reconciliation/r-1/approve", map[string]string{"notes": "no user"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestManualReconciliation(t *testing.T) {
	server, store := newTestServer(t)
	seedSnapshot(t, server)

	require.NoError(t, store.UpsertBankMovements(context.Background(), []ledger.BankMovement{
		{
			ExternalID:      "mov-manual",
			Amount:          500.00,
			TransactionDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}))

	resp := doJSON(t, server, http.MethodPost, "/api/reconciliation/manual",
		dto.ManualReconciliationRequest{
			MovementExternalID: "mov-manual",
			ReceivableID:       "rec-1",
			UserID:             "mario",
		})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var record ledger.ReconciliationRecord
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &record))
	assert.Equal(t, ledger.MatchManual, record.MatchType)
	assert.Equal(t, ledger.StatusApproved, record.Status)
	assert.Equal(t, 1.0, record.MatchScore)
}

func TestListRecordsAndRuns(t *testing.T) {
	server, _ := newTestServer(t)
	seedSnapshot(t, server)
	importBatch(t, server)

	resp := doJSON(t, server, http.MethodGet, "/api/reconciliation?status=matched", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var records dto.RecordListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &records))
	assert.Equal(t, 1, records.Count)

	resp = doJSON(t, server, http.MethodGet, "/api/reconciliation/runs", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var runs dto.ImportRunListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &runs))
	assert.Equal(t, 1, runs.Count)
}

func TestMovementsAndReceivablesEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	seedSnapshot(t, server)
	importBatch(t, server)

	resp := doJSON(t, server, http.MethodGet, "/api/movements?reconciled=false", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var movements dto.MovementListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &movements))
	assert.Equal(t, 1, movements.Count)

	resp = doJSON(t, server, http.MethodGet, "/api/movements/mov-1", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, server, http.MethodGet, "/api/movements/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = doJSON(t, server, http.MethodGet, "/api/receivables?min_amount=100", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var receivables dto.ReceivableListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &receivables))
	assert.Equal(t, 1, receivables.Count)
}

func TestDashboardAndStats(t *testing.T) {
	server, _ := newTestServer(t)
	seedSnapshot(t, server)
	importBatch(t, server)

	resp := doJSON(t, server, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var dashboard reporting.Dashboard
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &dashboard))
	assert.Len(t, dashboard.PendingReview, 1)
	assert.Equal(t, 1, dashboard.Stats.Counts.Total)

	resp = doJSON(t, server, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var stats reporting.Stats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, 100.0, stats.MatchRate)
}

func TestImport_EmptyBatchRejected(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/api/reconciliation/import",
		dto.ImportRequest{Movements: []dto.MovementPayload{}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
