/*
handlers_test.go - HTTP-level tests for the API

Exercises the full stack: router, handlers, services, and an
in-memory SQLite store. Requests and responses travel as JSON the
same way a real client would send them.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerline/payroll-engine/contractor"
	"github.com/ledgerline/payroll-engine/oversight"
	"github.com/ledgerline/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zap.NewNop()
	h := NewHandler(
		contractor.NewService(store, log),
		oversight.NewService(store, log),
		store,
	)
	return NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func fixedEarningsRequest(paystub string) (string, CreateEarningsRequest) {
	return "/api/paystubs/" + paystub + "/earnings", CreateEarningsRequest{
		AssignmentID:    "asgn-1",
		PayeeID:         "payee-1",
		RateMode:        "fixed_hourly",
		FixedHourlyRate: "4",
		PeriodBegin:     "2026-03-01",
		PeriodEnd:       "2026-03-14",
		GrossPay:        "1200",
		Lines: []PayLineDTO{
			{Description: "Regular", Hours: "80", Rate: "15", Amount: "1200"},
		},
	}
}

// =============================================================================
// EARNINGS ENDPOINTS
// =============================================================================

func TestCreateEarnings_FixedHourly(t *testing.T) {
	// GIVEN: A paystub with 80 regular hours at a $4.00/hr contract
	// WHEN: Posting earnings
	// THEN: 201 with a 320.00 unpaid record

	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	rec := doJSON(t, router, http.MethodPost, path, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decode[EarningsRecordDTO](t, rec)
	assert.Equal(t, "stub-1", dto.PaystubID)
	assert.Equal(t, "contractor", dto.PayeeKind)
	assert.Equal(t, "320.00", dto.TotalEarnings)
	assert.Equal(t, "880.00", dto.Margin)
	assert.Equal(t, "unpaid", dto.PaymentStatus)
	assert.False(t, dto.ReconciliationApplied)
}

func TestCreateEarnings_InvalidContract(t *testing.T) {
	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	req.FixedHourlyRate = "" // fixed_hourly mode with no rate
	rec := doJSON(t, router, http.MethodPost, path, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Details)
}

func TestCreateEarnings_MalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/paystubs/stub-1/earnings",
		bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOversightEarnings_ZeroHours(t *testing.T) {
	// GIVEN: A paystub whose only line carries no hours
	// WHEN: Posting oversight earnings
	// THEN: 204, nothing recorded

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/paystubs/stub-1/oversight-earnings",
		CreateOversightEarningsRequest{
			AssignmentID:   "mgr-asgn-1",
			PayeeID:        "manager-1",
			FlatHourlyRate: "2",
			PeriodBegin:    "2026-03-01",
			PeriodEnd:      "2026-03-14",
			GrossPay:       "50",
			Lines:          []PayLineDTO{{Description: "Gross Up", Amount: "50"}},
		})

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSetDepositSplits_Reconciles(t *testing.T) {
	// GIVEN: A computed 320.00 contractor record
	// WHEN: Replacing the paystub's deposit splits with a matching payee split
	// THEN: The returned record is reconciled with a correct variance

	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	created := doJSON(t, router, http.MethodPost, path, req)
	require.Equal(t, http.StatusCreated, created.Code)

	rec := doJSON(t, router, http.MethodPut, "/api/paystubs/stub-1/deposit-splits",
		SetDepositSplitsRequest{Splits: []DepositSplitDTO{
			{AccountID: "acct-payee", Owner: "payee", Amount: "320.00"},
			{AccountID: "acct-admin", Owner: "counterparty_admin", Amount: "880.00"},
		}})
	require.Equal(t, http.StatusOK, rec.Code)

	records := decode[[]EarningsRecordDTO](t, rec)
	require.Len(t, records, 1)
	assert.True(t, records[0].ReconciliationApplied)
	assert.Equal(t, "correct", records[0].VarianceStatus)
	assert.Equal(t, "320.00", records[0].ActualPayments)
}

func TestPaystubEarnings_Empty(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/paystubs/stub-none/earnings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]EarningsRecordDTO](t, rec))
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

func TestRecordPayment_ThenDelete(t *testing.T) {
	// GIVEN: One open 320.00 record
	// WHEN: Recording a 320.00 payment, then deleting it
	// THEN: The record returns to unpaid and the payment is gone

	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, path, req).Code)

	paid := doJSON(t, router, http.MethodPost, "/api/payments", RecordPaymentRequest{
		PayeeID: "payee-1",
		Amount:  "320.00",
		Method:  "wire_transfer",
		Date:    "2026-03-20",
	})
	require.Equal(t, http.StatusCreated, paid.Code)

	result := decode[PaymentResultDTO](t, paid)
	require.Len(t, result.Allocations, 1)
	assert.Equal(t, "320.00", result.Allocations[0].Amount)
	assert.Empty(t, result.Unallocated)

	ledger := doJSON(t, router, http.MethodGet, "/api/payees/payee-1/earnings", nil)
	records := decode[[]EarningsRecordDTO](t, ledger)
	require.Len(t, records, 1)
	assert.Equal(t, "paid", records[0].PaymentStatus)

	del := doJSON(t, router, http.MethodDelete, "/api/payments/"+result.Payment.ID, nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	ledger = doJSON(t, router, http.MethodGet, "/api/payees/payee-1/earnings", nil)
	records = decode[[]EarningsRecordDTO](t, ledger)
	require.Len(t, records, 1)
	assert.Equal(t, "unpaid", records[0].PaymentStatus)
	assert.Equal(t, "320.00", records[0].AmountPending)

	gone := doJSON(t, router, http.MethodGet, "/api/payments/"+result.Payment.ID, nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestRecordPayment_OverpaymentReportsUnallocated(t *testing.T) {
	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, path, req).Code)

	paid := doJSON(t, router, http.MethodPost, "/api/payments", RecordPaymentRequest{
		PayeeID: "payee-1",
		Amount:  "400.00",
		Date:    "2026-03-20",
	})
	require.Equal(t, http.StatusCreated, paid.Code)

	result := decode[PaymentResultDTO](t, paid)
	assert.Equal(t, "80.00", result.Unallocated)
}

func TestRecordPayment_NonPositiveAmount(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/payments", RecordPaymentRequest{
		PayeeID: "payee-1",
		Amount:  "0",
		Date:    "2026-03-20",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPayment_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/payments/pay-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewAllocation_ReadOnly(t *testing.T) {
	// GIVEN: One open 320.00 record
	// WHEN: Previewing a 200.00 payment
	// THEN: The plan shows a single 200.00 slice and nothing persists

	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, path, req).Code)

	rec := doJSON(t, router, http.MethodGet,
		"/api/payments/preview?payee_id=payee-1&amount=200", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	plan := decode[AllocationPreviewDTO](t, rec)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "200.00", plan.Allocations[0].Amount)
	assert.Equal(t, "0.00", plan.Unallocated)

	ledger := doJSON(t, router, http.MethodGet, "/api/payees/payee-1/earnings", nil)
	records := decode[[]EarningsRecordDTO](t, ledger)
	require.Len(t, records, 1)
	assert.Equal(t, "unpaid", records[0].PaymentStatus)
}

// =============================================================================
// SUMMARY AND HEALTH
// =============================================================================

func TestPayeeSummary(t *testing.T) {
	router := newTestRouter(t)

	path, req := fixedEarningsRequest("stub-1")
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, path, req).Code)

	rec := doJSON(t, router, http.MethodGet, "/api/payees/payee-1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sum := decode[SummaryDTO](t, rec)
	assert.Equal(t, "320.00", sum.TotalEarned)
	assert.Equal(t, "320.00", sum.TotalPending)
	assert.Equal(t, 1, sum.RecordCount)
	assert.Equal(t, 1, sum.UnpaidCount)
	require.NotNil(t, sum.OldestUnpaidDate)
	assert.Equal(t, "2026-03-01", *sum.OldestUnpaidDate)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
