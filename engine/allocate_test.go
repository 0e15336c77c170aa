package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func alloc(paymentID, recordID string, amount float64) engine.Allocation {
	return engine.Allocation{
		PaymentID: engine.PaymentID(paymentID),
		RecordID:  engine.RecordID(recordID),
		Amount:    decimal.NewFromFloat(amount),
	}
}

// =============================================================================
// FIFO PLANNING TESTS
// =============================================================================

func TestPlanFIFO_OldestPeriodFirst(t *testing.T) {
	// GIVEN: Record A (pending 150, oldest) and record B (pending 300)
	// WHEN: Planning a 200.00 payment
	// THEN: A absorbs 150, B absorbs the remaining 50

	a := record("rec-a", 150, day(1))
	b := record("rec-b", 300, day(15))

	plan := engine.PlanFIFO(money(200), []*engine.EarningsRecord{b, a})

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, engine.RecordID("rec-a"), plan.Allocations[0].RecordID)
	assert.True(t, plan.Allocations[0].Amount.Equal(money(150)))
	assert.Equal(t, engine.RecordID("rec-b"), plan.Allocations[1].RecordID)
	assert.True(t, plan.Allocations[1].Amount.Equal(money(50)))
	assert.True(t, plan.Unallocated.IsZero())
}

func TestPlanFIFO_Deterministic(t *testing.T) {
	// GIVEN: The same records and amount
	// WHEN: Planning repeatedly
	// THEN: The plans are identical

	records := []*engine.EarningsRecord{
		record("rec-a", 150, day(1)),
		record("rec-b", 300, day(15)),
		record("rec-c", 75, day(29)),
	}
	first := engine.PlanFIFO(money(400), records)
	second := engine.PlanFIFO(money(400), records)
	assert.Equal(t, first, second)
}

func TestPlanFIFO_ReportsUnallocatedRemainder(t *testing.T) {
	// GIVEN: Total outstanding pending of 150
	// WHEN: Planning a 200.00 payment
	// THEN: The 50.00 excess is reported, not dropped

	plan := engine.PlanFIFO(money(200), []*engine.EarningsRecord{record("rec-a", 150, day(1))})
	assert.True(t, plan.Unallocated.Equal(money(50)))
}

func TestPlanFIFO_SkipsPaidRecords(t *testing.T) {
	paid := record("rec-paid", 100, day(1))
	paid.AmountPaid = money(100)
	paid.RefreshLedger()

	open := record("rec-open", 300, day(15))

	plan := engine.PlanFIFO(money(100), []*engine.EarningsRecord{paid, open})
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, engine.RecordID("rec-open"), plan.Allocations[0].RecordID)
}

// =============================================================================
// MANUAL PLAN VALIDATION TESTS
// =============================================================================

func TestValidateManual_AcceptsPlanWithinPending(t *testing.T) {
	records := []*engine.EarningsRecord{record("rec-a", 150, day(1))}
	err := engine.ValidateManual(money(100), []engine.PlannedAllocation{
		{RecordID: "rec-a", Amount: money(100)},
	}, records)
	assert.NoError(t, err)
}

func TestValidateManual_RejectsOverPending(t *testing.T) {
	// GIVEN: Record A has only 150 pending
	// WHEN: A manual plan tries to apply 200 to it
	// THEN: The plan is rejected before any mutation

	records := []*engine.EarningsRecord{record("rec-a", 150, day(1))}
	err := engine.ValidateManual(money(200), []engine.PlannedAllocation{
		{RecordID: "rec-a", Amount: money(200)},
	}, records)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestValidateManual_RejectsUnknownRecord(t *testing.T) {
	err := engine.ValidateManual(money(100), []engine.PlannedAllocation{
		{RecordID: "rec-missing", Amount: money(100)},
	}, nil)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestValidateManual_RejectsPlanExceedingPayment(t *testing.T) {
	records := []*engine.EarningsRecord{
		record("rec-a", 150, day(1)),
		record("rec-b", 150, day(15)),
	}
	err := engine.ValidateManual(money(200), []engine.PlannedAllocation{
		{RecordID: "rec-a", Amount: money(150)},
		{RecordID: "rec-b", Amount: money(100)},
	}, records)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestValidateManual_RejectsNonPositiveAmount(t *testing.T) {
	records := []*engine.EarningsRecord{record("rec-a", 150, day(1))}
	err := engine.ValidateManual(money(100), []engine.PlannedAllocation{
		{RecordID: "rec-a", Amount: decimal.Zero},
	}, records)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// =============================================================================
// APPLY & REVERSE TESTS
// =============================================================================

func TestApply_UpdatesLedgers(t *testing.T) {
	// GIVEN: The A/B plan from the FIFO scenario
	// WHEN: Applying it
	// THEN: A is paid in full, B is partially paid with 250 pending

	a := record("rec-a", 150, day(1))
	b := record("rec-b", 300, day(15))
	records := []*engine.EarningsRecord{a, b}

	plan := engine.PlanFIFO(money(200), records)
	require.NoError(t, engine.Apply(plan, records))

	assert.Equal(t, engine.StatusPaid, a.PaymentStatus)
	assert.True(t, a.AmountPending.IsZero())
	assert.Equal(t, engine.StatusPartiallyPaid, b.PaymentStatus)
	assert.True(t, b.AmountPending.Equal(money(250)))
}

func TestReverse_RestoresPreAllocationState(t *testing.T) {
	// GIVEN: A 200.00 payment applied across A and B
	// WHEN: Reversing its allocations
	// THEN: Both records return to their exact pre-allocation state

	a := record("rec-a", 150, day(1))
	b := record("rec-b", 300, day(15))
	records := []*engine.EarningsRecord{a, b}

	plan := engine.PlanFIFO(money(200), records)
	require.NoError(t, engine.Apply(plan, records))

	allocations := []engine.Allocation{
		alloc("pay-1", "rec-a", 150),
		alloc("pay-1", "rec-b", 50),
	}
	require.NoError(t, engine.Reverse("pay-1", allocations, records))

	assert.True(t, a.AmountPaid.IsZero())
	assert.True(t, a.AmountPending.Equal(money(150)))
	assert.True(t, b.AmountPaid.IsZero())
	assert.True(t, b.AmountPending.Equal(money(300)))
	assert.Equal(t, engine.StatusUnpaid, a.PaymentStatus)
	assert.Equal(t, engine.StatusUnpaid, b.PaymentStatus)
}

func TestReverse_InconsistentLedgerAborts(t *testing.T) {
	// GIVEN: An allocation larger than the record's recorded paid amount
	// WHEN: Reversing
	// THEN: The reversal fails with an allocation inconsistency

	a := record("rec-a", 150, day(1))
	a.AmountPaid = money(50)
	a.RefreshLedger()

	err := engine.Reverse("pay-1", []engine.Allocation{alloc("pay-1", "rec-a", 150)},
		[]*engine.EarningsRecord{a})

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrAllocationInconsistency)
	var inconsistent *engine.AllocationInconsistencyError
	require.ErrorAs(t, err, &inconsistent)
	assert.Equal(t, engine.RecordID("rec-a"), inconsistent.RecordID)
}

func TestReverse_MissingRecordAborts(t *testing.T) {
	err := engine.Reverse("pay-1", []engine.Allocation{alloc("pay-1", "rec-gone", 100)}, nil)
	assert.ErrorIs(t, err, engine.ErrAllocationInconsistency)
}
