/*
rates.go - Earnings computation from classified lines and a rate contract

PURPOSE:
  Turns one period's classified pay lines plus a payee's rate contract into
  an EarningsRecord: regular earnings, incentive share, total, and the
  counterparty margin. Also hosts the simplified flat-rate computation used
  for the oversight payee role.

RATE MODES:
  Fixed-hourly:
    Recomputes pay line-by-line instead of trusting the extracted dollar
    amounts. Each surviving regular line contributes
        hours x fixed rate x multiplier
    where the multiplier mirrors the employer's own pay structure
    (1.5x overtime, 2.0x double time, rate/base rounded to the nearest
    half otherwise). Supplemental lines (premium, differential, GTL,
    gross-up) are skipped entirely - the fixed rate already prices the
    base labor and counting them would double-pay those hours.

  Percentage:
    percentage x the sum of ALL regular-line dollars, supplemental lines
    included. The fixed/percentage treatment of supplemental lines is
    intentionally asymmetric; see RateMode docs in types.go.

INCENTIVE SHARE (both modes):
  incentive split percentage x the sum of incentive-bucket dollars.

VALIDATION:
  - Payee total must be positive.
  - Payee total + margin must equal gross within two cents, else the
    computation fails with a ReconciliationError and nothing persists.
  - A negative margin is allowed but surfaced as a warning.

SEE ALSO:
  - classifier.go: Produces the two buckets consumed here
  - reconcile.go: Compares the expected total against observed deposits
*/
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPUTATION INPUT / OUTPUT
// =============================================================================

// PeriodInput is everything the rate engine needs for one paystub:
// the extracted lines, the period bounds, and the employer's reported gross.
type PeriodInput struct {
	PaystubID   PaystubID
	PeriodBegin time.Time
	PeriodEnd   time.Time
	GrossPay    decimal.Decimal
	Lines       []PayLine
}

// LineEarning is one row of the per-line breakdown kept for audit display:
// what the payee was paid for a single surviving pay line.
type LineEarning struct {
	Description string
	Hours       decimal.Decimal
	Multiplier  decimal.Decimal
	PayeeRate   decimal.Decimal
	Amount      decimal.Decimal
}

// Computation is the rate engine's full output: the earnings record plus
// the audit breakdown and any non-fatal warnings.
type Computation struct {
	Record    *EarningsRecord
	Breakdown []LineEarning // fixed-hourly mode only
	BaseRate  decimal.Decimal
	Warnings  []string
}

// =============================================================================
// RATE ENGINE
// =============================================================================

// RateEngine computes payee earnings for a period. It owns the classifier
// so callers hand it raw line lists.
type RateEngine struct {
	classifier *Classifier
}

// NewRateEngine builds a rate engine with the given classifier.
// Pass DefaultClassifier() for production behavior.
func NewRateEngine(c *Classifier) *RateEngine {
	return &RateEngine{classifier: c}
}

// Compute derives a payee's earnings for one period under one contract.
// The returned record carries gross figures and a fresh payment ledger
// (unpaid, pending = total); identity fields are left for the caller.
func (e *RateEngine) Compute(in PeriodInput, contract RateContract) (*Computation, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	regular, incentive := e.classifier.Classify(in.Lines)

	regularTotal := sumAmounts(regular)
	incentiveTotal := sumAmounts(incentive)
	totalHours := sumNonSupplementalHours(regular)

	comp := &Computation{}

	var payeeRegular decimal.Decimal
	switch contract.Mode {
	case RateFixedHourly:
		payeeRegular = e.computeFixed(in.Lines, regular, contract.FixedHourlyRate, comp)
	case RatePercentage:
		// Percentage of the full regular-line total, supplemental included.
		payeeRegular = Cents(regularTotal.Mul(contract.PercentageRate).Div(hundred))
	}

	split := contract.IncentiveSplitPct
	if split.IsZero() {
		split = DefaultIncentiveSplit
	}
	payeeIncentive := Cents(incentiveTotal.Mul(split).Div(hundred))

	payeeTotal := payeeRegular.Add(payeeIncentive)
	margin := in.GrossPay.Sub(payeeTotal)

	rec := &EarningsRecord{
		PaystubID:       in.PaystubID,
		PayeeKind:       PayeeContractor,
		PeriodBegin:     in.PeriodBegin,
		PeriodEnd:       in.PeriodEnd,
		GrossPay:        in.GrossPay,
		TotalHours:      totalHours,
		RegularEarnings: payeeRegular,
		IncentiveShare:  payeeIncentive,
		TotalEarnings:   payeeTotal,
		Margin:          margin,
		PaymentStatus:   StatusUnpaid,
		AmountPaid:      decimal.Zero,
		AmountPending:   payeeTotal,
	}
	comp.Record = rec

	if err := ValidateEarnings(rec); err != nil {
		return nil, err
	}
	if margin.IsNegative() {
		comp.Warnings = append(comp.Warnings, "negative counterparty margin: "+margin.StringFixed(2))
	}

	return comp, nil
}

// computeFixed runs the line-by-line recomputation for fixed-hourly mode.
// allLines is needed (not just the regular bucket) because base-rate and
// overtime-premium detection scan the whole paystub.
func (e *RateEngine) computeFixed(allLines, regular []PayLine, fixedRate decimal.Decimal, comp *Computation) decimal.Decimal {
	baseRate := detectBaseRate(allLines)
	hasOTPremium := hasOvertimePremium(allLines)
	comp.BaseRate = baseRate

	total := decimal.Zero
	for _, line := range regular {
		if !line.Hours.IsPositive() {
			continue
		}
		mult, ok := earningMultiplier(line.Description, line.Rate, baseRate, hasOTPremium)
		if !ok {
			continue // supplemental line: hours and dollars both excluded
		}
		linePay := Cents(line.Hours.Mul(fixedRate).Mul(mult))
		total = total.Add(linePay)

		comp.Breakdown = append(comp.Breakdown, LineEarning{
			Description: line.Description,
			Hours:       line.Hours,
			Multiplier:  mult,
			PayeeRate:   Cents(fixedRate.Mul(mult)),
			Amount:      linePay,
		})
	}
	return total
}

// =============================================================================
// FLAT-RATE VARIANT (oversight payees)
// =============================================================================

// ComputeFlatRate derives oversight earnings: non-supplemental regular hours
// times a flat hourly rate. No classification of incentives, no multipliers.
// Returns the hours used alongside the rounded total.
func (e *RateEngine) ComputeFlatRate(in PeriodInput, flatRate decimal.Decimal) (hours, total decimal.Decimal, err error) {
	if !flatRate.IsPositive() {
		return decimal.Zero, decimal.Zero, &ValidationError{Field: "flat_hourly_rate", Message: "must be greater than zero"}
	}
	regular, _ := e.classifier.Classify(in.Lines)
	hours = sumNonSupplementalHours(regular)
	total = Cents(hours.Mul(flatRate))
	return hours, total, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the contract invariant: exactly one rate field set,
// in range, matching the declared mode.
func (c RateContract) Validate() error {
	switch c.Mode {
	case RateFixedHourly:
		if !c.FixedHourlyRate.IsPositive() {
			return &ValidationError{Field: "fixed_hourly_rate", Message: "must be greater than zero for fixed-hourly contracts"}
		}
		if !c.PercentageRate.IsZero() {
			return &ValidationError{Field: "percentage_rate", Message: "must not be set on a fixed-hourly contract"}
		}
	case RatePercentage:
		if !c.PercentageRate.IsPositive() || c.PercentageRate.GreaterThan(hundred) {
			return &ValidationError{Field: "percentage_rate", Message: "must be in (0, 100] for percentage contracts"}
		}
		if !c.FixedHourlyRate.IsZero() {
			return &ValidationError{Field: "fixed_hourly_rate", Message: "must not be set on a percentage contract"}
		}
	default:
		return &ValidationError{Field: "rate_mode", Message: "unknown rate mode: " + string(c.Mode)}
	}
	if c.IncentiveSplitPct.IsNegative() || c.IncentiveSplitPct.GreaterThan(hundred) {
		return &ValidationError{Field: "incentive_split_percentage", Message: "must be in [0, 100]"}
	}
	return nil
}

// ValidateEarnings runs the sanity checks on a computed record:
// payee total positive, and the three money totals in agreement.
func ValidateEarnings(r *EarningsRecord) error {
	if !r.TotalEarnings.IsPositive() {
		return &ValidationError{Field: "total_earnings", Message: "payee earnings must be positive, got " + r.TotalEarnings.StringFixed(2)}
	}
	drift := r.TotalEarnings.Add(r.Margin).Sub(r.GrossPay).Abs()
	if drift.GreaterThan(ReconcileTolerance) {
		return &ReconciliationError{
			PayeeTotal: r.TotalEarnings,
			Margin:     r.Margin,
			GrossPay:   r.GrossPay,
		}
	}
	return nil
}

// =============================================================================
// MULTIPLIER DERIVATION
// =============================================================================

var (
	hundred        = decimal.NewFromInt(100)
	two            = decimal.NewFromInt(2)
	multRegular    = decimal.NewFromInt(1)
	multOvertime   = decimal.NewFromFloat(1.5)
	multDoubleTime = decimal.NewFromInt(2)
)

// detectBaseRate finds the hourly rate on the "regular" line, if any.
// Returns zero when no regular line carries a positive rate.
func detectBaseRate(lines []PayLine) decimal.Decimal {
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line.Description), "regular") && line.Rate.IsPositive() {
			return line.Rate
		}
	}
	return decimal.Zero
}

// hasOvertimePremium checks for an "overtime premium" companion line,
// the signature of employers that split OT into base + half-time lines.
func hasOvertimePremium(lines []PayLine) bool {
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line.Description), "overtime premium") {
			return true
		}
	}
	return false
}

// earningMultiplier derives the rate multiplier for one line relative to
// the base rate. Returns ok=false for supplemental lines, which must be
// skipped entirely in fixed-hourly mode.
func earningMultiplier(description string, rate, baseRate decimal.Decimal, hasOTPremium bool) (decimal.Decimal, bool) {
	desc := strings.ToLower(description)

	if IsSupplemental(description) {
		return decimal.Zero, false
	}

	if strings.Contains(desc, "overtime") {
		if hasOTPremium {
			// Companion premium line present: the OT line is paid at base,
			// so the payee's OT multiplier is straight time-and-a-half.
			return multOvertime, true
		}
		if baseRate.IsPositive() && rate.IsPositive() {
			return roundToHalf(rate.Div(baseRate)), true
		}
		return multOvertime, true
	}

	if strings.Contains(desc, "double time") {
		return multDoubleTime, true
	}

	// Regular, Holiday, Vacation, Sick, PTO: derive from rate vs base rate.
	if baseRate.IsPositive() && rate.IsPositive() {
		return roundToHalf(rate.Div(baseRate)), true
	}
	return multRegular, true
}

// roundToHalf rounds a ratio to the nearest 0.5 (handles 1.0, 1.5, 2.0).
func roundToHalf(ratio decimal.Decimal) decimal.Decimal {
	return ratio.Mul(two).Round(0).Div(two)
}

// =============================================================================
// SUMMING HELPERS
// =============================================================================

func sumAmounts(lines []PayLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount)
	}
	return total
}

// sumNonSupplementalHours counts hours only from base earning lines.
// Supplemental lines duplicate hours already counted elsewhere.
func sumNonSupplementalHours(lines []PayLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		if IsSupplemental(line.Description) {
			continue
		}
		total = total.Add(line.Hours)
	}
	return total
}
