/*
Package engine provides the core payroll reconciliation engine.

PURPOSE:
  This package contains the pure computation layer for turning extracted
  pay-period line items into payee earnings, checking those earnings against
  observed deposits, and applying incoming payments against outstanding
  earnings in an auditable order. It performs no I/O of its own: persistence
  and HTTP belong to the surrounding packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - PayLine: One extracted line item from an employer paystub (immutable)
  - RateContract: How a payee is paid (fixed-hourly or percentage-of-regular)
  - EarningsRecord: The ledger row for one payee, one pay period
  - Payment / Allocation: Money received and how it was applied
  - DepositSplit: A portion of a paystub's net pay routed to a bank account

DESIGN PRINCIPLES:
  1. Precision: All money uses decimal.Decimal. A one-cent drift is a defect.
  2. Determinism: Same inputs always produce the same outputs.
  3. Auditability: Every paid/pending change traces to an Allocation row.
  4. Purity: Functions here mutate only the records handed to them.

SEE ALSO:
  - rules.go: Classification rule set (regular vs incentive lines)
  - rates.go: Earnings computation from classified lines and a contract
  - reconcile.go: Expected-vs-actual dual tracking
  - allocate.go: FIFO payment allocation and reversal
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY HELPERS
// =============================================================================

// Cents rounds a decimal to two places, half away from zero.
// This is the single rounding rule used everywhere money is produced.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Tolerances used by validation and variance classification.
var (
	// ReconcileTolerance is the allowed drift between payee total + margin
	// and the employer's reported gross pay (two cents of rounding slack).
	ReconcileTolerance = decimal.NewFromFloat(0.02)

	// VarianceTolerance is the allowed drift between expected earnings and
	// observed deposits before a period is flagged over/underpaid.
	VarianceTolerance = decimal.NewFromFloat(0.01)
)

// MustDecimal parses a decimal string, returning zero on failure.
// Intended for constants and store deserialization, mirroring how amounts
// are round-tripped as strings through SQLite.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PAY LINE - One extracted paystub line item
// =============================================================================

// PayLine is a single earning line from an employer paystub, as produced by
// the upstream document extractor. The engine never mutates pay lines.
type PayLine struct {
	Description string
	Hours       decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal // current period dollars
	YTDAmount   decimal.Decimal // year-to-date dollars (informational)
}

// =============================================================================
// RATE CONTRACT - How a payee is compensated under an assignment
// =============================================================================

// RateMode selects how regular earnings are derived for a contractor.
type RateMode string

const (
	// RateFixedHourly recomputes pay line-by-line at a fixed hourly rate,
	// mirroring the employer's multiplier structure (1.5x overtime etc).
	RateFixedHourly RateMode = "fixed_hourly"

	// RatePercentage pays a percentage of the employer's regular-line total.
	//
	// NOTE: percentage mode includes supplemental-line dollars (premium,
	// differential, ...) in its base while fixed mode skips those lines.
	// This asymmetry matches the observed behavior of the system this
	// engine reconciles against and is preserved deliberately.
	RatePercentage RateMode = "percentage"
)

// RateContract is the compensation agreement attached to an assignment
// between a payee and a counterparty.
//
// INVARIANT: exactly one of FixedHourlyRate / PercentageRate is set,
// depending on Mode. Validate() enforces this before any computation.
type RateContract struct {
	Mode            RateMode
	FixedHourlyRate decimal.Decimal // required iff Mode == RateFixedHourly, > 0
	PercentageRate  decimal.Decimal // required iff Mode == RatePercentage, (0, 100]

	// IncentiveSplitPct is the payee's share of incentive-bucket dollars,
	// 0-100. Zero value means "not set"; DefaultIncentiveSplit applies.
	IncentiveSplitPct decimal.Decimal
}

// DefaultIncentiveSplit is applied when a contract does not set a split.
var DefaultIncentiveSplit = decimal.NewFromInt(50)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	AssignmentID string
	PaystubID    string
	PayeeID      string
	RecordID     string
	PaymentID    string
)

// PayeeKind distinguishes the two payee roles the engine settles for.
type PayeeKind string

const (
	PayeeContractor PayeeKind = "contractor"
	PayeeOversight  PayeeKind = "oversight"
)

// =============================================================================
// EARNINGS RECORD - The per-period ledger row
// =============================================================================

// PaymentStatus is a pure function of amount-paid vs the paid basis.
type PaymentStatus string

const (
	StatusUnpaid        PaymentStatus = "unpaid"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusPaid          PaymentStatus = "paid"
)

// VarianceStatus classifies observed deposits against expected earnings.
type VarianceStatus string

const (
	VarianceCorrect   VarianceStatus = "correct"
	VarianceOverpaid  VarianceStatus = "overpaid"
	VarianceUnderpaid VarianceStatus = "underpaid"
)

// EarningsRecord is what one payee is owed for one pay period under one
// assignment. Created when a paystub is matched to an assignment; mutated
// only by the reconciler and the allocator.
type EarningsRecord struct {
	ID           RecordID
	AssignmentID AssignmentID
	PaystubID    PaystubID
	PayeeID      PayeeID
	PayeeKind    PayeeKind

	PeriodBegin time.Time
	PeriodEnd   time.Time

	// Employer-side figures.
	GrossPay   decimal.Decimal // counterparty gross for the period
	TotalHours decimal.Decimal // non-supplemental hours on the paystub

	// Payee-side figures.
	RegularEarnings decimal.Decimal
	IncentiveShare  decimal.Decimal
	TotalEarnings   decimal.Decimal // regular + incentive, rounded to cents
	Margin          decimal.Decimal // gross - total (may be negative)

	// Oversight variant only: the flat rate the total was computed at.
	FlatHourlyRate decimal.Decimal

	// Dual tracking (set by the reconciler).
	ExpectedEarnings      decimal.Decimal
	ActualPayments        decimal.Decimal
	PaymentVariance       decimal.Decimal
	VarianceStatus        VarianceStatus
	ReconciliationApplied bool

	// Payment ledger (set by the allocator).
	PaymentStatus PaymentStatus
	AmountPaid    decimal.Decimal
	AmountPending decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PaidBasis is the denominator amount-paid/amount-pending are tracked
// against. Before reconciliation it is the computed entitlement; once the
// reconciler has run for the paystub it is the observed deposit total.
// The switch is explicit via ReconciliationApplied rather than implied by
// which fields happen to be populated.
func (r *EarningsRecord) PaidBasis() decimal.Decimal {
	if r.ReconciliationApplied {
		return r.ActualPayments
	}
	return r.TotalEarnings
}

// RefreshLedger recomputes amount-pending and payment-status from
// amount-paid and the current paid basis.
//
// INVARIANT: AmountPaid + AmountPending == PaidBasis, to the cent.
func (r *EarningsRecord) RefreshLedger() {
	r.AmountPending = r.PaidBasis().Sub(r.AmountPaid)
	switch {
	case r.AmountPending.LessThanOrEqual(decimal.Zero):
		r.PaymentStatus = StatusPaid
	case r.AmountPaid.GreaterThan(decimal.Zero):
		r.PaymentStatus = StatusPartiallyPaid
	default:
		r.PaymentStatus = StatusUnpaid
	}
}

// Outstanding reports whether the record can still absorb allocations.
func (r *EarningsRecord) Outstanding() bool {
	return r.PaymentStatus == StatusUnpaid || r.PaymentStatus == StatusPartiallyPaid
}

// =============================================================================
// PAYMENT & ALLOCATION
// =============================================================================

// Payment is a lump sum received for a payee. Immutable once allocations
// exist, except for deletion, which must fully reverse them first.
type Payment struct {
	ID         PaymentID
	PayeeID    PayeeID
	Amount     decimal.Decimal // > 0
	Method     string          // direct_deposit, check, wire_transfer, ...
	Date       time.Time
	Reference  string // external transaction reference
	Notes      string
	RecordedBy string
	CreatedAt  time.Time
}

// Allocation applies part of a payment to one earnings record.
//
// INVARIANTS:
//   - Sum of a payment's allocations never exceeds the payment amount.
//   - An allocation never exceeds the target record's pending at apply time.
type Allocation struct {
	ID        string
	PaymentID PaymentID
	RecordID  RecordID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// =============================================================================
// DEPOSIT SPLIT
// =============================================================================

// AccountOwner tags whose bank account a deposit split landed in.
type AccountOwner string

const (
	OwnerPayee AccountOwner = "payee"
	OwnerAdmin AccountOwner = "counterparty_admin"
)

// DepositSplit is a portion of a paystub's net pay routed to one account.
// The reconciler sums payee-owned splits to determine actual payments.
type DepositSplit struct {
	ID        string
	PaystubID PaystubID
	AccountID string
	Owner     AccountOwner
	Amount    decimal.Decimal
	CreatedAt time.Time
}
