package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func record(id string, pending float64, begin time.Time) *engine.EarningsRecord {
	rec := &engine.EarningsRecord{
		ID:            engine.RecordID(id),
		PaystubID:     "stub-1",
		PayeeID:       "payee-1",
		PeriodBegin:   begin,
		TotalEarnings: decimal.NewFromFloat(pending),
		AmountPaid:    decimal.Zero,
	}
	rec.RefreshLedger()
	return rec
}

func split(owner engine.AccountOwner, amount float64) engine.DepositSplit {
	return engine.DepositSplit{
		PaystubID: "stub-1",
		AccountID: "acct-1",
		Owner:     owner,
		Amount:    decimal.NewFromFloat(amount),
	}
}

// =============================================================================
// DUAL TRACKING TESTS
// =============================================================================

func TestReconcile_CorrectWithinTolerance(t *testing.T) {
	// GIVEN: Expected 425.00, observed deposits totaling 425.01
	// WHEN: Reconciling
	// THEN: Variance is within one cent and classified correct

	rec := record("rec-1", 425, time.Now())
	engine.Reconcile(rec, []engine.DepositSplit{split(engine.OwnerPayee, 425.01)})

	assert.Equal(t, engine.VarianceCorrect, rec.VarianceStatus)
	assert.True(t, rec.ExpectedEarnings.Equal(money(425)))
	assert.True(t, rec.ActualPayments.Equal(money(425.01)))
	assert.True(t, rec.ReconciliationApplied)
}

func TestReconcile_Underpaid(t *testing.T) {
	rec := record("rec-1", 425, time.Now())
	engine.Reconcile(rec, []engine.DepositSplit{split(engine.OwnerPayee, 400)})

	assert.Equal(t, engine.VarianceUnderpaid, rec.VarianceStatus)
	assert.True(t, rec.PaymentVariance.Equal(money(-25)))
}

func TestReconcile_Overpaid(t *testing.T) {
	rec := record("rec-1", 425, time.Now())
	engine.Reconcile(rec, []engine.DepositSplit{split(engine.OwnerPayee, 500)})

	assert.Equal(t, engine.VarianceOverpaid, rec.VarianceStatus)
	assert.True(t, rec.PaymentVariance.Equal(money(75)))
}

func TestReconcile_IgnoresAdminOwnedSplits(t *testing.T) {
	// GIVEN: The paystub routes part of net pay to a counterparty account
	// WHEN: Reconciling
	// THEN: Only payee-owned splits count toward actual payments

	rec := record("rec-1", 425, time.Now())
	engine.Reconcile(rec, []engine.DepositSplit{
		split(engine.OwnerPayee, 425),
		split(engine.OwnerAdmin, 875),
	})

	assert.True(t, rec.ActualPayments.Equal(money(425)))
	assert.Equal(t, engine.VarianceCorrect, rec.VarianceStatus)
}

func TestReconcile_SwitchesPendingBasisToActual(t *testing.T) {
	// GIVEN: A record expecting 425 with 100 already paid
	// WHEN: Deposits show only 400 actually moved
	// THEN: Pending tracks against 400, not 425

	rec := record("rec-1", 425, time.Now())
	rec.AmountPaid = money(100)
	engine.Reconcile(rec, []engine.DepositSplit{split(engine.OwnerPayee, 400)})

	assert.True(t, rec.PaidBasis().Equal(money(400)))
	assert.True(t, rec.AmountPending.Equal(money(300)))
	assert.Equal(t, engine.StatusPartiallyPaid, rec.PaymentStatus)
}

func TestReconcile_Idempotent(t *testing.T) {
	// GIVEN: A reconciled record
	// WHEN: Reconciling again with the same splits
	// THEN: Nothing changes

	rec := record("rec-1", 425, time.Now())
	splits := []engine.DepositSplit{split(engine.OwnerPayee, 400)}

	engine.Reconcile(rec, splits)
	first := *rec
	engine.Reconcile(rec, splits)

	assert.Equal(t, first, *rec)
}

func TestReconcile_RerunReplacesOutcome(t *testing.T) {
	// GIVEN: A record reconciled as underpaid
	// WHEN: Splits are corrected and reconciliation reruns
	// THEN: The new outcome fully replaces the old one

	rec := record("rec-1", 425, time.Now())
	engine.Reconcile(rec, []engine.DepositSplit{split(engine.OwnerPayee, 400)})
	assert.Equal(t, engine.VarianceUnderpaid, rec.VarianceStatus)

	engine.Reconcile(rec, []engine.DepositSplit{split(engine.OwnerPayee, 425)})
	assert.Equal(t, engine.VarianceCorrect, rec.VarianceStatus)
	assert.True(t, rec.AmountPending.Equal(money(425)))
}

func TestReconcile_SkipsSplitsFromOtherPaystubs(t *testing.T) {
	rec := record("rec-1", 425, time.Now())
	other := split(engine.OwnerPayee, 999)
	other.PaystubID = "stub-2"

	engine.Reconcile(rec, []engine.DepositSplit{other, split(engine.OwnerPayee, 425)})
	assert.True(t, rec.ActualPayments.Equal(money(425)))
}
