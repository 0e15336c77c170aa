package contractor_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/payroll-engine/contractor"
	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// twoOpenPeriods seeds records A (pending 150, oldest) and B (pending 300).
func twoOpenPeriods(t *testing.T, svc *contractor.Service) (a, b *engine.EarningsRecord) {
	ctx := context.Background()

	a, err := svc.CreateEarnings(ctx, earningsInput("stub-a", march(1), 600,
		payLine("Regular", 37.5, 16, 600)))
	require.NoError(t, err)
	require.True(t, a.TotalEarnings.Equal(money(150)))

	b, err = svc.CreateEarnings(ctx, earningsInput("stub-b", march(15), 1200,
		payLine("Regular", 75, 16, 1200)))
	require.NoError(t, err)
	require.True(t, b.TotalEarnings.Equal(money(300)))
	return a, b
}

// =============================================================================
// RECORDING TESTS
// =============================================================================

func TestRecordPayment_FIFOAcrossPeriods(t *testing.T) {
	// GIVEN: Records A (150, oldest) and B (300)
	// WHEN: Recording a 200.00 payment
	// THEN: A is fully paid, B partially, and two allocation rows exist

	svc, store := newTestService(t)
	ctx := context.Background()
	a, b := twoOpenPeriods(t, svc)

	result, err := svc.RecordPayment(ctx, contractor.RecordPaymentInput{
		PayeeID: "payee-1",
		Amount:  money(200),
		Method:  "wire_transfer",
		Date:    march(20),
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 2)
	assert.True(t, result.Unallocated.IsZero())

	recA, err := store.GetEarnings(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPaid, recA.PaymentStatus)
	assert.True(t, recA.AmountPending.IsZero())

	recB, err := store.GetEarnings(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPartiallyPaid, recB.PaymentStatus)
	assert.True(t, recB.AmountPending.Equal(money(250)))
}

func TestRecordPayment_ManualAllocation(t *testing.T) {
	// GIVEN: Records A and B; the caller wants to settle B first
	// WHEN: Recording with an explicit allocation plan
	// THEN: Only B is touched

	svc, store := newTestService(t)
	ctx := context.Background()
	a, b := twoOpenPeriods(t, svc)

	_, err := svc.RecordPayment(ctx, contractor.RecordPaymentInput{
		PayeeID: "payee-1",
		Amount:  money(200),
		Date:    march(20),
		Allocations: []engine.PlannedAllocation{
			{RecordID: b.ID, Amount: money(200)},
		},
	})
	require.NoError(t, err)

	recA, err := store.GetEarnings(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusUnpaid, recA.PaymentStatus)

	recB, err := store.GetEarnings(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, recB.AmountPending.Equal(money(100)))
}

func TestRecordPayment_ManualAllocationOverPendingRejected(t *testing.T) {
	// GIVEN: Record A has 150 pending
	// WHEN: A manual plan targets it with 200
	// THEN: The whole payment is rejected and nothing persists

	svc, store := newTestService(t)
	ctx := context.Background()
	a, _ := twoOpenPeriods(t, svc)

	_, err := svc.RecordPayment(ctx, contractor.RecordPaymentInput{
		PayeeID: "payee-1",
		Amount:  money(200),
		Date:    march(20),
		Allocations: []engine.PlannedAllocation{
			{RecordID: a.ID, Amount: money(200)},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrValidation)

	payments, err := svc.Payments(ctx, "payee-1")
	require.NoError(t, err)
	assert.Empty(t, payments)

	rec, err := store.GetEarnings(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusUnpaid, rec.PaymentStatus)
}

func TestRecordPayment_OverpaymentReportsUnallocated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	twoOpenPeriods(t, svc)

	result, err := svc.RecordPayment(ctx, contractor.RecordPaymentInput{
		PayeeID: "payee-1",
		Amount:  money(500),
		Date:    march(20),
	})
	require.NoError(t, err)
	assert.True(t, result.Unallocated.Equal(money(50)))
}

func TestRecordPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RecordPayment(context.Background(), contractor.RecordPaymentInput{
		PayeeID: "payee-1",
		Amount:  decimal.Zero,
	})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

// =============================================================================
// DELETION TESTS
// =============================================================================

func TestDeletePayment_ReversesAllocationsExactly(t *testing.T) {
	// GIVEN: The 200.00 FIFO payment across A and B
	// WHEN: Deleting it
	// THEN: Both records return to unpaid with their full pending restored

	svc, store := newTestService(t)
	ctx := context.Background()
	a, b := twoOpenPeriods(t, svc)

	result, err := svc.RecordPayment(ctx, contractor.RecordPaymentInput{
		PayeeID: "payee-1",
		Amount:  money(200),
		Date:    march(20),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePayment(ctx, result.Payment.ID))

	recA, err := store.GetEarnings(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusUnpaid, recA.PaymentStatus)
	assert.True(t, recA.AmountPending.Equal(money(150)))

	recB, err := store.GetEarnings(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusUnpaid, recB.PaymentStatus)
	assert.True(t, recB.AmountPending.Equal(money(300)))

	_, err = store.GetPayment(ctx, result.Payment.ID)
	assert.ErrorIs(t, err, engine.ErrRecordNotFound)

	allocs, err := store.AllocationsByPayment(ctx, result.Payment.ID)
	require.NoError(t, err)
	assert.Empty(t, allocs)
}

func TestDeletePayment_UnknownPayment(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.DeletePayment(context.Background(), "pay-missing")
	assert.ErrorIs(t, err, engine.ErrRecordNotFound)
}

// =============================================================================
// PREVIEW TESTS
// =============================================================================

func TestPreviewAllocation_DoesNotPersist(t *testing.T) {
	// GIVEN: Records A and B
	// WHEN: Previewing a 200.00 payment
	// THEN: The plan matches FIFO and no ledger changes

	svc, store := newTestService(t)
	ctx := context.Background()
	a, b := twoOpenPeriods(t, svc)

	plan, err := svc.PreviewAllocation(ctx, "payee-1", money(200))
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, a.ID, plan.Allocations[0].RecordID)
	assert.Equal(t, b.ID, plan.Allocations[1].RecordID)

	rec, err := store.GetEarnings(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusUnpaid, rec.PaymentStatus)
}
