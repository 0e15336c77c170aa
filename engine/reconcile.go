/*
reconcile.go - Expected-vs-actual dual tracking for a pay period

PURPOSE:
  The computed entitlement says what a payee SHOULD have received; the
  deposit splits on the paystub say what they ACTUALLY received. The
  reconciler records both on the earnings record, classifies the variance,
  and switches the payment ledger's denominator to the observed total.

BEHAVIOR:
  - ExpectedEarnings is frozen from the computed total.
  - ActualPayments is the sum of payee-owned deposit splits.
  - Variance = actual - expected; within one cent it is "correct",
    positive beyond that "overpaid", negative "underpaid".
  - After reconciliation, amount-pending and payment-status track against
    ActualPayments, not the computed total. The payee can only be owed
    what actually moved.
  - A variance is a recorded outcome, never an error.

IDEMPOTENCE:
  Reconcile is a pure recompute from the splits. Running it twice with the
  same splits leaves the record unchanged; running it after splits change
  replaces the previous outcome.

SEE ALSO:
  - rates.go: Produces ExpectedEarnings
  - allocate.go: Consumes the post-reconciliation pending amounts
*/
package engine

import "github.com/shopspring/decimal"

// Reconcile applies dual tracking to a record using the paystub's deposit
// splits. Only splits owned by the payee count toward actual payments;
// splits routed to counterparty admin accounts are the margin leaving the
// payee's view and are ignored here.
func Reconcile(rec *EarningsRecord, splits []DepositSplit) {
	actual := decimal.Zero
	for _, s := range splits {
		if s.PaystubID != rec.PaystubID || s.Owner != OwnerPayee {
			continue
		}
		actual = actual.Add(s.Amount)
	}

	rec.ExpectedEarnings = rec.TotalEarnings
	rec.ActualPayments = Cents(actual)
	rec.PaymentVariance = rec.ActualPayments.Sub(rec.ExpectedEarnings)
	rec.VarianceStatus = classifyVariance(rec.PaymentVariance)
	rec.ReconciliationApplied = true

	rec.RefreshLedger()
}

// classifyVariance buckets a variance against VarianceTolerance.
func classifyVariance(variance decimal.Decimal) VarianceStatus {
	switch {
	case variance.Abs().LessThanOrEqual(VarianceTolerance):
		return VarianceCorrect
	case variance.IsPositive():
		return VarianceOverpaid
	default:
		return VarianceUnderpaid
	}
}
