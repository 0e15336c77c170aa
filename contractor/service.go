/*
Package contractor wires the engine into the contractor settlement flow.

PURPOSE:
  The engine computes and mutates records; this package decides when and
  in what order, under the store's transactional boundary. It covers the
  contractor payee role: earnings creation from a matched paystub,
  deposit-split reconciliation, and payment recording and deletion.

service.go - Earnings lifecycle for contractor payees

FLOW:
  1. A paystub is matched to an assignment upstream.
  2. CreateEarnings computes the contractor's entitlement under the
     assignment's rate contract and upserts the period record.
  3. If the paystub already has deposit splits, reconciliation runs in
     the same transaction, so the record never persists half-tracked.
  4. SetDepositSplits replaces a paystub's splits and re-reconciles every
     record on that paystub.

SEE ALSO:
  - payments.go: Recording and deleting payments against these records
  - engine/rates.go: The computation invoked here
*/
package contractor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service manages contractor earnings records.
type Service struct {
	store  engine.TxStore
	engine *engine.RateEngine
	log    *zap.Logger
}

// NewService builds a contractor service over the given store.
func NewService(store engine.TxStore, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine.NewRateEngine(engine.DefaultClassifier()),
		log:    log,
	}
}

// =============================================================================
// EARNINGS CREATION
// =============================================================================

// CreateEarningsInput identifies the assignment being settled and carries
// the period's extracted data.
type CreateEarningsInput struct {
	AssignmentID engine.AssignmentID
	PayeeID      engine.PayeeID
	Contract     engine.RateContract
	Period       engine.PeriodInput
}

// CreateEarnings computes and persists the contractor's earnings for one
// paystub. Recomputing the same (assignment, paystub) pair replaces the
// computed figures and preserves the payment ledger. If deposit splits
// already exist for the paystub, reconciliation is applied in the same
// transaction.
func (s *Service) CreateEarnings(ctx context.Context, in CreateEarningsInput) (*engine.EarningsRecord, error) {
	comp, err := s.engine.Compute(in.Period, in.Contract)
	if err != nil {
		return nil, err
	}
	for _, w := range comp.Warnings {
		s.log.Warn("earnings computation warning",
			zap.String("paystub_id", string(in.Period.PaystubID)),
			zap.String("payee_id", string(in.PayeeID)),
			zap.String("warning", w))
	}

	rec := comp.Record
	rec.AssignmentID = in.AssignmentID
	rec.PayeeID = in.PayeeID
	rec.PayeeKind = engine.PayeeContractor

	var stored *engine.EarningsRecord
	err = s.store.WithTx(ctx, func(tx engine.Store) error {
		var txErr error
		stored, txErr = tx.UpsertEarnings(ctx, rec)
		if txErr != nil {
			return txErr
		}

		splits, txErr := tx.DepositSplitsByPaystub(ctx, rec.PaystubID)
		if txErr != nil {
			return txErr
		}
		if len(splits) == 0 {
			return nil
		}
		engine.Reconcile(stored, splits)
		return tx.UpdateEarningsLedger(ctx, stored)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contractor earnings recorded",
		zap.String("record_id", string(stored.ID)),
		zap.String("paystub_id", string(stored.PaystubID)),
		zap.String("total", stored.TotalEarnings.StringFixed(2)),
		zap.String("margin", stored.Margin.StringFixed(2)))
	return stored, nil
}

// Preview computes earnings without persisting anything, for display
// before the caller commits an assignment's contract terms.
func (s *Service) Preview(ctx context.Context, in CreateEarningsInput) (*engine.Computation, error) {
	return s.engine.Compute(in.Period, in.Contract)
}

// =============================================================================
// DEPOSIT SPLITS & RECONCILIATION
// =============================================================================

// SetDepositSplits replaces the deposit splits of a paystub and
// re-reconciles every earnings record attached to it, all in one
// transaction. Splits must carry positive amounts.
func (s *Service) SetDepositSplits(ctx context.Context, paystubID engine.PaystubID, splits []engine.DepositSplit) error {
	now := time.Now().UTC()
	for i := range splits {
		if !splits[i].Amount.IsPositive() {
			return &engine.ValidationError{Field: "splits", Message: "split amounts must be positive"}
		}
		splits[i].PaystubID = paystubID
		if splits[i].ID == "" {
			splits[i].ID = uuid.NewString()
		}
		if splits[i].CreatedAt.IsZero() {
			splits[i].CreatedAt = now
		}
	}

	return s.store.WithTx(ctx, func(tx engine.Store) error {
		if err := tx.ReplaceDepositSplits(ctx, paystubID, splits); err != nil {
			return err
		}
		records, err := tx.EarningsByPaystub(ctx, paystubID)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.PayeeKind != engine.PayeeContractor {
				continue
			}
			engine.Reconcile(rec, splits)
			if err := tx.UpdateEarningsLedger(ctx, rec); err != nil {
				return err
			}
			if rec.VarianceStatus != engine.VarianceCorrect {
				s.log.Warn("payment variance detected",
					zap.String("record_id", string(rec.ID)),
					zap.String("status", string(rec.VarianceStatus)),
					zap.String("variance", rec.PaymentVariance.StringFixed(2)))
			}
		}
		return nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// Earnings returns a payee's records, newest period first.
func (s *Service) Earnings(ctx context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return s.store.EarningsByPayee(ctx, payeeID)
}

// Summary aggregates a payee's ledger into display totals.
func (s *Service) Summary(ctx context.Context, payeeID engine.PayeeID) (*engine.PayeeSummary, error) {
	records, err := s.store.EarningsByPayee(ctx, payeeID)
	if err != nil {
		return nil, err
	}

	sum := &engine.PayeeSummary{PayeeID: payeeID}
	for _, rec := range records {
		sum.TotalEarned = sum.TotalEarned.Add(rec.PaidBasis())
		sum.TotalPaid = sum.TotalPaid.Add(rec.AmountPaid)
		sum.TotalPending = sum.TotalPending.Add(rec.AmountPending)
		sum.RecordCount++
		if rec.Outstanding() && rec.AmountPending.IsPositive() {
			sum.UnpaidCount++
			begin := rec.PeriodBegin
			if sum.OldestUnpaidDate == nil || begin.Before(*sum.OldestUnpaidDate) {
				sum.OldestUnpaidDate = &begin
			}
		}
	}
	sum.TotalEarned = engine.Cents(sum.TotalEarned)
	sum.TotalPaid = engine.Cents(sum.TotalPaid)
	sum.TotalPending = engine.Cents(sum.TotalPending)
	return sum, nil
}
