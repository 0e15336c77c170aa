/*
allocate.go - FIFO payment allocation and exact reversal

PURPOSE:
  Applies a received lump sum against a payee's outstanding earnings
  records, oldest pay period first, and undoes those applications exactly
  when a payment is deleted. This is the only code that moves money
  between amount-paid and amount-pending.

FIFO ORDER:
  Outstanding records are consumed by ascending period-begin date. Each
  record absorbs min(remaining, pending); any remainder after the last
  outstanding record is reported as Unallocated, never silently dropped
  and never turned into a credit balance.

MANUAL ALLOCATIONS:
  Callers may hand an explicit plan instead. Manual plans are validated
  against the same invariants FIFO guarantees by construction: targets
  must exist and belong to the payee, amounts must be positive, no target
  may receive more than its pending, and the plan total may not exceed
  the payment amount.

REVERSAL:
  Deleting a payment subtracts each allocation from its record and
  re-derives pending and status. Amount-paid is floored at zero; a
  reversal that would drive it negative aborts the whole deletion with
  an AllocationInconsistencyError.

SEE ALSO:
  - reconcile.go: Sets the pending amounts this file consumes
  - store.go: The transactional boundary plans are applied under
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOCATION PLANNING
// =============================================================================

// PlannedAllocation pairs a target record with the amount it will absorb.
type PlannedAllocation struct {
	RecordID RecordID
	Amount   decimal.Decimal
}

// AllocationPlan is the outcome of planning a payment against outstanding
// records: the per-record applications plus any unallocatable remainder.
type AllocationPlan struct {
	Allocations []PlannedAllocation
	Unallocated decimal.Decimal
}

// PlanFIFO distributes amount across the outstanding records, oldest
// period first. The input records are not mutated. Records that are fully
// paid or have non-positive pending are skipped.
func PlanFIFO(amount decimal.Decimal, records []*EarningsRecord) AllocationPlan {
	ordered := make([]*EarningsRecord, 0, len(records))
	for _, r := range records {
		if r.Outstanding() && r.AmountPending.IsPositive() {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PeriodBegin.Before(ordered[j].PeriodBegin)
	})

	plan := AllocationPlan{}
	remaining := amount
	for _, r := range ordered {
		if !remaining.IsPositive() {
			break
		}
		applied := decimal.Min(remaining, r.AmountPending)
		plan.Allocations = append(plan.Allocations, PlannedAllocation{
			RecordID: r.ID,
			Amount:   applied,
		})
		remaining = remaining.Sub(applied)
	}
	plan.Unallocated = remaining
	return plan
}

// ValidateManual checks a caller-supplied plan against the payee's records.
// records must contain every record the plan targets.
func ValidateManual(amount decimal.Decimal, plan []PlannedAllocation, records []*EarningsRecord) error {
	byID := make(map[RecordID]*EarningsRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	total := decimal.Zero
	seen := make(map[RecordID]decimal.Decimal, len(plan))
	for _, p := range plan {
		if !p.Amount.IsPositive() {
			return &ValidationError{Field: "allocations", Message: "allocation amounts must be positive"}
		}
		rec, ok := byID[p.RecordID]
		if !ok {
			return &ValidationError{Field: "allocations", Message: "unknown earnings record " + string(p.RecordID)}
		}
		seen[p.RecordID] = seen[p.RecordID].Add(p.Amount)
		if seen[p.RecordID].GreaterThan(rec.AmountPending) {
			return &ValidationError{
				Field: "allocations",
				Message: "allocation to record " + string(p.RecordID) + " exceeds pending " +
					rec.AmountPending.StringFixed(2),
			}
		}
		total = total.Add(p.Amount)
	}
	if total.GreaterThan(amount) {
		return &ValidationError{Field: "allocations", Message: "allocations exceed the payment amount"}
	}
	return nil
}

// =============================================================================
// APPLY & REVERSE
// =============================================================================

// Apply mutates each targeted record per the plan and refreshes its ledger.
// Targets missing from records are reported as a validation error; the
// caller's transaction is expected to roll back on any error.
func Apply(plan AllocationPlan, records []*EarningsRecord) error {
	byID := make(map[RecordID]*EarningsRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	for _, p := range plan.Allocations {
		rec, ok := byID[p.RecordID]
		if !ok {
			return &ValidationError{Field: "allocations", Message: "unknown earnings record " + string(p.RecordID)}
		}
		rec.AmountPaid = rec.AmountPaid.Add(p.Amount)
		rec.RefreshLedger()
	}
	return nil
}

// Reverse undoes a payment's allocations against its records. Each record's
// amount-paid drops by the allocated amount, floored at zero. If an
// allocation exceeds what the record shows as paid, the ledgers have
// diverged and the reversal aborts so the enclosing transaction rolls back.
func Reverse(paymentID PaymentID, allocations []Allocation, records []*EarningsRecord) error {
	byID := make(map[RecordID]*EarningsRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	for _, a := range allocations {
		rec, ok := byID[a.RecordID]
		if !ok {
			return &AllocationInconsistencyError{
				PaymentID: paymentID,
				RecordID:  a.RecordID,
				Reason:    "earnings record no longer exists",
			}
		}
		if a.Amount.GreaterThan(rec.AmountPaid) {
			return &AllocationInconsistencyError{
				PaymentID: paymentID,
				RecordID:  a.RecordID,
				Reason: "allocation " + a.Amount.StringFixed(2) +
					" exceeds recorded paid " + rec.AmountPaid.StringFixed(2),
			}
		}
		rec.AmountPaid = rec.AmountPaid.Sub(a.Amount)
		rec.RefreshLedger()
	}
	return nil
}
