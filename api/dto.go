/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. All money travels as decimal
  strings ("320.00"), never as floats; dates as RFC 3339 or YYYY-MM-DD.

CONVERSION:
  to*DTO helpers map domain types outward. Parsing helpers on the
  request types validate and convert inward, returning engine
  validation errors so the handler error mapping stays uniform.

SEE ALSO:
  - handlers.go: Where these are consumed and produced
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// REQUESTS
// =============================================================================

// PayLineDTO is one extracted paystub line.
type PayLineDTO struct {
	Description string `json:"description"`
	Hours       string `json:"hours"`
	Rate        string `json:"rate"`
	Amount      string `json:"amount"`
	YTDAmount   string `json:"ytd_amount,omitempty"`
}

// CreateEarningsRequest computes contractor earnings for a paystub.
type CreateEarningsRequest struct {
	AssignmentID      string       `json:"assignment_id"`
	PayeeID           string       `json:"payee_id"`
	RateMode          string       `json:"rate_mode"`
	FixedHourlyRate   string       `json:"fixed_hourly_rate,omitempty"`
	PercentageRate    string       `json:"percentage_rate,omitempty"`
	IncentiveSplitPct string       `json:"incentive_split_percentage,omitempty"`
	PeriodBegin       string       `json:"period_begin"`
	PeriodEnd         string       `json:"period_end"`
	GrossPay          string       `json:"gross_pay"`
	Lines             []PayLineDTO `json:"lines"`
}

// CreateOversightEarningsRequest computes flat-rate oversight earnings.
type CreateOversightEarningsRequest struct {
	AssignmentID   string       `json:"assignment_id"`
	PayeeID        string       `json:"payee_id"`
	FlatHourlyRate string       `json:"flat_hourly_rate"`
	PeriodBegin    string       `json:"period_begin"`
	PeriodEnd      string       `json:"period_end"`
	GrossPay       string       `json:"gross_pay"`
	Lines          []PayLineDTO `json:"lines"`
}

// DepositSplitDTO is one observed net-pay routing.
type DepositSplitDTO struct {
	AccountID string `json:"account_id"`
	Owner     string `json:"owner"`
	Amount    string `json:"amount"`
}

// SetDepositSplitsRequest replaces a paystub's splits.
type SetDepositSplitsRequest struct {
	Splits []DepositSplitDTO `json:"splits"`
}

// AllocationRequestDTO is one entry of a manual allocation plan.
type AllocationRequestDTO struct {
	RecordID string `json:"record_id"`
	Amount   string `json:"amount"`
}

// RecordPaymentRequest records a received payment.
type RecordPaymentRequest struct {
	PayeeID     string                 `json:"payee_id"`
	Amount      string                 `json:"amount"`
	Method      string                 `json:"method,omitempty"`
	Date        string                 `json:"date"`
	Reference   string                 `json:"reference,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
	RecordedBy  string                 `json:"recorded_by,omitempty"`
	Allocations []AllocationRequestDTO `json:"allocations,omitempty"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// EarningsRecordDTO is the full ledger row for one payee and period.
type EarningsRecordDTO struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignment_id"`
	PaystubID    string `json:"paystub_id"`
	PayeeID      string `json:"payee_id"`
	PayeeKind    string `json:"payee_kind"`
	PeriodBegin  string `json:"period_begin"`
	PeriodEnd    string `json:"period_end"`

	GrossPay        string `json:"gross_pay"`
	TotalHours      string `json:"total_hours"`
	RegularEarnings string `json:"regular_earnings"`
	IncentiveShare  string `json:"incentive_share"`
	TotalEarnings   string `json:"total_earnings"`
	Margin          string `json:"margin"`
	FlatHourlyRate  string `json:"flat_hourly_rate,omitempty"`

	ExpectedEarnings      string `json:"expected_earnings,omitempty"`
	ActualPayments        string `json:"actual_payments,omitempty"`
	PaymentVariance       string `json:"payment_variance,omitempty"`
	VarianceStatus        string `json:"variance_status,omitempty"`
	ReconciliationApplied bool   `json:"reconciliation_applied"`

	PaymentStatus string `json:"payment_status"`
	AmountPaid    string `json:"amount_paid"`
	AmountPending string `json:"amount_pending"`
}

// PaymentDTO is one recorded payment.
type PaymentDTO struct {
	ID         string `json:"id"`
	PayeeID    string `json:"payee_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method,omitempty"`
	Date       string `json:"date"`
	Reference  string `json:"reference,omitempty"`
	Notes      string `json:"notes,omitempty"`
	RecordedBy string `json:"recorded_by,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// AllocationDTO is one payment-to-record application.
type AllocationDTO struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	RecordID  string `json:"record_id"`
	Amount    string `json:"amount"`
}

// PaymentResultDTO is the outcome of recording a payment.
type PaymentResultDTO struct {
	Payment     PaymentDTO      `json:"payment"`
	Allocations []AllocationDTO `json:"allocations"`
	Unallocated string          `json:"unallocated,omitempty"`
}

// PlannedAllocationDTO is one entry of a hypothetical distribution.
type PlannedAllocationDTO struct {
	RecordID string `json:"record_id"`
	Amount   string `json:"amount"`
}

// AllocationPreviewDTO shows how a payment would be distributed.
type AllocationPreviewDTO struct {
	Allocations []PlannedAllocationDTO `json:"allocations"`
	Unallocated string                 `json:"unallocated"`
}

// SummaryDTO aggregates a payee's ledger.
type SummaryDTO struct {
	PayeeID          string  `json:"payee_id"`
	TotalEarned      string  `json:"total_earned"`
	TotalPaid        string  `json:"total_paid"`
	TotalPending     string  `json:"total_pending"`
	RecordCount      int     `json:"record_count"`
	UnpaidCount      int     `json:"unpaid_count"`
	OldestUnpaidDate *string `json:"oldest_unpaid_date,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// INBOUND CONVERSION
// =============================================================================

func parseMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &engine.ValidationError{Field: field, Message: "invalid decimal: " + s}
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &engine.ValidationError{Field: field, Message: "invalid date: " + s}
}

func parseLines(dtos []PayLineDTO) ([]engine.PayLine, error) {
	lines := make([]engine.PayLine, 0, len(dtos))
	for _, d := range dtos {
		hours, err := parseMoney("lines.hours", d.Hours)
		if err != nil {
			return nil, err
		}
		rate, err := parseMoney("lines.rate", d.Rate)
		if err != nil {
			return nil, err
		}
		amount, err := parseMoney("lines.amount", d.Amount)
		if err != nil {
			return nil, err
		}
		ytd, err := parseMoney("lines.ytd_amount", d.YTDAmount)
		if err != nil {
			return nil, err
		}
		lines = append(lines, engine.PayLine{
			Description: d.Description,
			Hours:       hours,
			Rate:        rate,
			Amount:      amount,
			YTDAmount:   ytd,
		})
	}
	return lines, nil
}

func parsePeriod(paystubID engine.PaystubID, beginStr, endStr, grossStr string, lineDTOs []PayLineDTO) (engine.PeriodInput, error) {
	begin, err := parseDate("period_begin", beginStr)
	if err != nil {
		return engine.PeriodInput{}, err
	}
	end, err := parseDate("period_end", endStr)
	if err != nil {
		return engine.PeriodInput{}, err
	}
	gross, err := parseMoney("gross_pay", grossStr)
	if err != nil {
		return engine.PeriodInput{}, err
	}
	lines, err := parseLines(lineDTOs)
	if err != nil {
		return engine.PeriodInput{}, err
	}
	return engine.PeriodInput{
		PaystubID:   paystubID,
		PeriodBegin: begin,
		PeriodEnd:   end,
		GrossPay:    gross,
		Lines:       lines,
	}, nil
}

func (req CreateEarningsRequest) contract() (engine.RateContract, error) {
	fixed, err := parseMoney("fixed_hourly_rate", req.FixedHourlyRate)
	if err != nil {
		return engine.RateContract{}, err
	}
	pct, err := parseMoney("percentage_rate", req.PercentageRate)
	if err != nil {
		return engine.RateContract{}, err
	}
	split, err := parseMoney("incentive_split_percentage", req.IncentiveSplitPct)
	if err != nil {
		return engine.RateContract{}, err
	}
	return engine.RateContract{
		Mode:              engine.RateMode(req.RateMode),
		FixedHourlyRate:   fixed,
		PercentageRate:    pct,
		IncentiveSplitPct: split,
	}, nil
}

// =============================================================================
// OUTBOUND CONVERSION
// =============================================================================

func toEarningsDTO(rec *engine.EarningsRecord) EarningsRecordDTO {
	dto := EarningsRecordDTO{
		ID:           string(rec.ID),
		AssignmentID: string(rec.AssignmentID),
		PaystubID:    string(rec.PaystubID),
		PayeeID:      string(rec.PayeeID),
		PayeeKind:    string(rec.PayeeKind),
		PeriodBegin:  rec.PeriodBegin.Format("2006-01-02"),
		PeriodEnd:    rec.PeriodEnd.Format("2006-01-02"),

		GrossPay:        rec.GrossPay.StringFixed(2),
		TotalHours:      rec.TotalHours.String(),
		RegularEarnings: rec.RegularEarnings.StringFixed(2),
		IncentiveShare:  rec.IncentiveShare.StringFixed(2),
		TotalEarnings:   rec.TotalEarnings.StringFixed(2),
		Margin:          rec.Margin.StringFixed(2),

		ReconciliationApplied: rec.ReconciliationApplied,
		PaymentStatus:         string(rec.PaymentStatus),
		AmountPaid:            rec.AmountPaid.StringFixed(2),
		AmountPending:         rec.AmountPending.StringFixed(2),
	}
	if rec.PayeeKind == engine.PayeeOversight {
		dto.FlatHourlyRate = rec.FlatHourlyRate.String()
	}
	if rec.ReconciliationApplied {
		dto.ExpectedEarnings = rec.ExpectedEarnings.StringFixed(2)
		dto.ActualPayments = rec.ActualPayments.StringFixed(2)
		dto.PaymentVariance = rec.PaymentVariance.StringFixed(2)
		dto.VarianceStatus = string(rec.VarianceStatus)
	}
	return dto
}

func toEarningsDTOs(records []*engine.EarningsRecord) []EarningsRecordDTO {
	dtos := make([]EarningsRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toEarningsDTO(rec)
	}
	return dtos
}

func toPaymentDTO(p *engine.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         string(p.ID),
		PayeeID:    string(p.PayeeID),
		Amount:     p.Amount.StringFixed(2),
		Method:     p.Method,
		Date:       p.Date.Format("2006-01-02"),
		Reference:  p.Reference,
		Notes:      p.Notes,
		RecordedBy: p.RecordedBy,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toAllocationDTOs(allocs []engine.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = AllocationDTO{
			ID:        a.ID,
			PaymentID: string(a.PaymentID),
			RecordID:  string(a.RecordID),
			Amount:    a.Amount.StringFixed(2),
		}
	}
	return dtos
}

func toSummaryDTO(sum *engine.PayeeSummary) SummaryDTO {
	dto := SummaryDTO{
		PayeeID:      string(sum.PayeeID),
		TotalEarned:  sum.TotalEarned.StringFixed(2),
		TotalPaid:    sum.TotalPaid.StringFixed(2),
		TotalPending: sum.TotalPending.StringFixed(2),
		RecordCount:  sum.RecordCount,
		UnpaidCount:  sum.UnpaidCount,
	}
	if sum.OldestUnpaidDate != nil {
		s := sum.OldestUnpaidDate.Format("2006-01-02")
		dto.OldestUnpaidDate = &s
	}
	return dto
}
