/*
handlers.go - HTTP API handlers for the payroll reconciliation engine

PURPOSE:
  Exposes the settlement services via REST. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Paystubs:
    POST /api/paystubs/{id}/earnings            Compute contractor earnings
    POST /api/paystubs/{id}/oversight-earnings  Compute oversight earnings
    PUT  /api/paystubs/{id}/deposit-splits      Replace splits + reconcile
    GET  /api/paystubs/{id}/earnings            Records on a paystub

  Payees:
    GET /api/payees/{id}/earnings  Ledger rows, newest period first
    GET /api/payees/{id}/summary   Aggregate totals
    GET /api/payees/{id}/payments  Payment history

  Payments:
    POST   /api/payments           Record and allocate a payment
    GET    /api/payments/preview   Hypothetical FIFO distribution
    GET    /api/payments/{id}      One payment with allocations
    DELETE /api/payments/{id}      Delete and reverse

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation and reconciliation failures
  - 404: Resource not found
  - 409: Allocation inconsistency on delete
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/payroll-engine/contractor"
	"github.com/ledgerline/payroll-engine/engine"
	"github.com/ledgerline/payroll-engine/oversight"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Contractors *contractor.Service
	Oversight   *oversight.Service
	Store       engine.TxStore
}

// NewHandler creates a handler over the two settlement services.
func NewHandler(contractors *contractor.Service, oversightSvc *oversight.Service, store engine.TxStore) *Handler {
	return &Handler{
		Contractors: contractors,
		Oversight:   oversightSvc,
		Store:       store,
	}
}

// =============================================================================
// PAYSTUB HANDLERS
// =============================================================================

// CreateEarnings computes and persists contractor earnings for a paystub.
// POST /api/paystubs/{id}/earnings
func (h *Handler) CreateEarnings(w http.ResponseWriter, r *http.Request) {
	paystubID := engine.PaystubID(chi.URLParam(r, "id"))

	var req CreateEarningsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := parsePeriod(paystubID, req.PeriodBegin, req.PeriodEnd, req.GrossPay, req.Lines)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	contract, err := req.contract()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := h.Contractors.CreateEarnings(r.Context(), contractor.CreateEarningsInput{
		AssignmentID: engine.AssignmentID(req.AssignmentID),
		PayeeID:      engine.PayeeID(req.PayeeID),
		Contract:     contract,
		Period:       period,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEarningsDTO(rec))
}

// CreateOversightEarnings computes flat-rate oversight earnings.
// POST /api/paystubs/{id}/oversight-earnings
func (h *Handler) CreateOversightEarnings(w http.ResponseWriter, r *http.Request) {
	paystubID := engine.PaystubID(chi.URLParam(r, "id"))

	var req CreateOversightEarningsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	period, err := parsePeriod(paystubID, req.PeriodBegin, req.PeriodEnd, req.GrossPay, req.Lines)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rate, err := parseMoney("flat_hourly_rate", req.FlatHourlyRate)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rec, err := h.Oversight.UpsertEarnings(r.Context(), oversight.UpsertEarningsInput{
		AssignmentID: engine.AssignmentID(req.AssignmentID),
		PayeeID:      engine.PayeeID(req.PayeeID),
		FlatRate:     rate,
		Period:       period,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rec == nil {
		// Zero-hour period: nothing recorded.
		writeJSON(w, http.StatusNoContent, nil)
		return
	}

	writeJSON(w, http.StatusCreated, toEarningsDTO(rec))
}

// SetDepositSplits replaces a paystub's splits and re-reconciles.
// PUT /api/paystubs/{id}/deposit-splits
func (h *Handler) SetDepositSplits(w http.ResponseWriter, r *http.Request) {
	paystubID := engine.PaystubID(chi.URLParam(r, "id"))

	var req SetDepositSplitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	splits := make([]engine.DepositSplit, 0, len(req.Splits))
	for _, dto := range req.Splits {
		amount, err := parseMoney("splits.amount", dto.Amount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		splits = append(splits, engine.DepositSplit{
			AccountID: dto.AccountID,
			Owner:     engine.AccountOwner(dto.Owner),
			Amount:    amount,
		})
	}

	if err := h.Contractors.SetDepositSplits(r.Context(), paystubID, splits); err != nil {
		writeDomainError(w, err)
		return
	}

	records, err := h.Store.EarningsByPaystub(r.Context(), paystubID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEarningsDTOs(records))
}

// PaystubEarnings returns all earnings records on a paystub.
// GET /api/paystubs/{id}/earnings
func (h *Handler) PaystubEarnings(w http.ResponseWriter, r *http.Request) {
	paystubID := engine.PaystubID(chi.URLParam(r, "id"))

	records, err := h.Store.EarningsByPaystub(r.Context(), paystubID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEarningsDTOs(records))
}

// =============================================================================
// PAYEE HANDLERS
// =============================================================================

// PayeeEarnings returns a payee's ledger rows, newest period first.
// GET /api/payees/{id}/earnings
func (h *Handler) PayeeEarnings(w http.ResponseWriter, r *http.Request) {
	payeeID := engine.PayeeID(chi.URLParam(r, "id"))

	records, err := h.Contractors.Earnings(r.Context(), payeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEarningsDTOs(records))
}

// PayeeSummary returns aggregate totals for a payee.
// GET /api/payees/{id}/summary
func (h *Handler) PayeeSummary(w http.ResponseWriter, r *http.Request) {
	payeeID := engine.PayeeID(chi.URLParam(r, "id"))

	sum, err := h.Contractors.Summary(r.Context(), payeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// PayeePayments returns a payee's payment history.
// GET /api/payees/{id}/payments
func (h *Handler) PayeePayments(w http.ResponseWriter, r *http.Request) {
	payeeID := engine.PayeeID(chi.URLParam(r, "id"))

	payments, err := h.Contractors.Payments(r.Context(), payeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment records a payment and allocates it.
// POST /api/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseMoney("amount", req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	manual := make([]engine.PlannedAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		allocAmount, err := parseMoney("allocations.amount", a.Amount)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		manual = append(manual, engine.PlannedAllocation{
			RecordID: engine.RecordID(a.RecordID),
			Amount:   allocAmount,
		})
	}

	result, err := h.Contractors.RecordPayment(r.Context(), contractor.RecordPaymentInput{
		PayeeID:     engine.PayeeID(req.PayeeID),
		Amount:      amount,
		Method:      req.Method,
		Date:        date,
		Reference:   req.Reference,
		Notes:       req.Notes,
		RecordedBy:  req.RecordedBy,
		Allocations: manual,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := PaymentResultDTO{
		Payment:     toPaymentDTO(result.Payment),
		Allocations: toAllocationDTOs(result.Allocations),
	}
	if result.Unallocated.IsPositive() {
		dto.Unallocated = result.Unallocated.StringFixed(2)
	}
	writeJSON(w, http.StatusCreated, dto)
}

// PreviewAllocation shows a hypothetical FIFO distribution.
// GET /api/payments/preview?payee_id=...&amount=...
func (h *Handler) PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	payeeID := engine.PayeeID(r.URL.Query().Get("payee_id"))
	amount, err := parseMoney("amount", r.URL.Query().Get("amount"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	plan, err := h.Contractors.PreviewAllocation(r.Context(), payeeID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := AllocationPreviewDTO{
		Allocations: make([]PlannedAllocationDTO, len(plan.Allocations)),
		Unallocated: plan.Unallocated.StringFixed(2),
	}
	for i, p := range plan.Allocations {
		dto.Allocations[i] = PlannedAllocationDTO{
			RecordID: string(p.RecordID),
			Amount:   p.Amount.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetPayment returns one payment with its allocations.
// GET /api/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := engine.PaymentID(chi.URLParam(r, "id"))

	payment, allocations, err := h.Contractors.Payment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PaymentResultDTO{
		Payment:     toPaymentDTO(payment),
		Allocations: toAllocationDTOs(allocations),
	})
}

// DeletePayment deletes a payment, reversing its allocations.
// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id := engine.PaymentID(chi.URLParam(r, "id"))

	if err := h.Contractors.DeletePayment(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine error categories onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
