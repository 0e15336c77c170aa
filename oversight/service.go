/*
Package oversight settles the flat-rate supervisory payee role.

PURPOSE:
  An oversight payee earns a flat hourly rate on the hours a supervised
  contractor worked, derived from the same paystub the contractor is
  settled against. There is no classification of incentives and no
  multiplier structure, and no deposit-split reconciliation applies:
  oversight pay never flows through the paystub's direct deposit.

UPSERT SEMANTICS:
  One record per (assignment, paystub). Reprocessing a paystub, for
  example after a rate change, replaces the computed figures in place
  and preserves the payment ledger. Zero-hour periods are skipped
  rather than recorded.

PAYMENTS:
  Oversight records share the payment ledger with contractor records.
  The contractor package's payment flow settles them the same way since
  allocation is keyed by payee, not payee kind.

SEE ALSO:
  - engine/rates.go: ComputeFlatRate
  - contractor/payments.go: The shared payment flow
*/
package oversight

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline/payroll-engine/engine"
)

// Service manages oversight earnings records.
type Service struct {
	store  engine.TxStore
	engine *engine.RateEngine
	log    *zap.Logger
}

// NewService builds an oversight service over the given store.
func NewService(store engine.TxStore, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		engine: engine.NewRateEngine(engine.DefaultClassifier()),
		log:    log,
	}
}

// UpsertEarningsInput identifies the oversight assignment and the
// supervised paystub's period data.
type UpsertEarningsInput struct {
	AssignmentID engine.AssignmentID
	PayeeID      engine.PayeeID
	FlatRate     decimal.Decimal
	Period       engine.PeriodInput
}

// UpsertEarnings computes and persists oversight earnings for one
// paystub. Returns (nil, nil) when the period has no billable hours.
func (s *Service) UpsertEarnings(ctx context.Context, in UpsertEarningsInput) (*engine.EarningsRecord, error) {
	hours, total, err := s.engine.ComputeFlatRate(in.Period, in.FlatRate)
	if err != nil {
		return nil, err
	}
	if !hours.IsPositive() {
		s.log.Debug("skipping oversight earnings for zero-hour period",
			zap.String("paystub_id", string(in.Period.PaystubID)),
			zap.String("assignment_id", string(in.AssignmentID)))
		return nil, nil
	}

	rec := &engine.EarningsRecord{
		AssignmentID:    in.AssignmentID,
		PaystubID:       in.Period.PaystubID,
		PayeeID:         in.PayeeID,
		PayeeKind:       engine.PayeeOversight,
		PeriodBegin:     in.Period.PeriodBegin,
		PeriodEnd:       in.Period.PeriodEnd,
		GrossPay:        in.Period.GrossPay,
		TotalHours:      hours,
		RegularEarnings: total,
		TotalEarnings:   total,
		FlatHourlyRate:  in.FlatRate,
		PaymentStatus:   engine.StatusUnpaid,
		AmountPending:   total,
	}

	var stored *engine.EarningsRecord
	err = s.store.WithTx(ctx, func(tx engine.Store) error {
		var txErr error
		stored, txErr = tx.UpsertEarnings(ctx, rec)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("oversight earnings recorded",
		zap.String("record_id", string(stored.ID)),
		zap.String("paystub_id", string(stored.PaystubID)),
		zap.String("hours", hours.String()),
		zap.String("total", total.StringFixed(2)))
	return stored, nil
}

// Earnings returns an oversight payee's records, newest period first.
func (s *Service) Earnings(ctx context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return s.store.EarningsByPayee(ctx, payeeID)
}
