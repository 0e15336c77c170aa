/*
payments.go - Payment recording, deletion, and allocation preview

PURPOSE:
  Turns received lump sums into allocation rows against a payee's
  outstanding earnings, and undoes the whole chain when a payment is
  deleted. Every multi-row mutation runs inside one store transaction:
  a payment either lands with all of its allocations and ledger updates,
  or not at all.

RECORDING:
  RecordPayment loads the payee's outstanding records oldest-first, plans
  the distribution (FIFO by default, or a validated manual plan), then
  writes the payment row, the allocation rows, and the updated ledgers.
  An unallocatable remainder is logged and returned, never dropped into
  a credit balance.

DELETION:
  DeletePayment reverses every allocation exactly, floors amount-paid at
  zero, and removes the allocation and payment rows. If the ledgers have
  diverged from the allocation rows the deletion aborts with a conflict.

SEE ALSO:
  - engine/allocate.go: The planning and reversal primitives
*/
package contractor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// RECORDING
// =============================================================================

// RecordPaymentInput describes one received payment. Allocations, when
// non-empty, overrides FIFO with an explicit plan.
type RecordPaymentInput struct {
	PayeeID     engine.PayeeID
	Amount      decimal.Decimal
	Method      string
	Date        time.Time
	Reference   string
	Notes       string
	RecordedBy  string
	Allocations []engine.PlannedAllocation
}

// PaymentResult reports what a recorded payment did.
type PaymentResult struct {
	Payment     *engine.Payment
	Allocations []engine.Allocation
	Unallocated decimal.Decimal
}

// RecordPayment persists a payment and applies it against the payee's
// outstanding earnings in a single transaction.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, &engine.ValidationError{Field: "amount", Message: "payment amount must be positive"}
	}
	if in.PayeeID == "" {
		return nil, &engine.ValidationError{Field: "payee_id", Message: "payee is required"}
	}

	payment := &engine.Payment{
		ID:         engine.PaymentID(uuid.NewString()),
		PayeeID:    in.PayeeID,
		Amount:     engine.Cents(in.Amount),
		Method:     in.Method,
		Date:       in.Date,
		Reference:  in.Reference,
		Notes:      in.Notes,
		RecordedBy: in.RecordedBy,
		CreatedAt:  time.Now().UTC(),
	}

	result := &PaymentResult{Payment: payment}
	err := s.store.WithTx(ctx, func(tx engine.Store) error {
		records, err := tx.OutstandingEarnings(ctx, in.PayeeID)
		if err != nil {
			return err
		}

		var plan engine.AllocationPlan
		if len(in.Allocations) > 0 {
			if err := engine.ValidateManual(payment.Amount, in.Allocations, records); err != nil {
				return err
			}
			plan = engine.AllocationPlan{Allocations: in.Allocations}
			plan.Unallocated = payment.Amount
			for _, p := range in.Allocations {
				plan.Unallocated = plan.Unallocated.Sub(p.Amount)
			}
		} else {
			plan = engine.PlanFIFO(payment.Amount, records)
		}

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return err
		}

		allocations := make([]engine.Allocation, 0, len(plan.Allocations))
		for _, p := range plan.Allocations {
			allocations = append(allocations, engine.Allocation{
				ID:        uuid.NewString(),
				PaymentID: payment.ID,
				RecordID:  p.RecordID,
				Amount:    p.Amount,
				CreatedAt: payment.CreatedAt,
			})
		}
		if err := tx.InsertAllocations(ctx, allocations); err != nil {
			return err
		}
		if err := engine.Apply(plan, records); err != nil {
			return err
		}
		for _, rec := range records {
			if err := tx.UpdateEarningsLedger(ctx, rec); err != nil {
				return err
			}
		}

		result.Allocations = allocations
		result.Unallocated = plan.Unallocated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Unallocated.IsPositive() {
		s.log.Warn("payment exceeds outstanding earnings",
			zap.String("payment_id", string(payment.ID)),
			zap.String("payee_id", string(in.PayeeID)),
			zap.String("unallocated", result.Unallocated.StringFixed(2)))
	}
	s.log.Info("payment recorded",
		zap.String("payment_id", string(payment.ID)),
		zap.String("payee_id", string(in.PayeeID)),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.Int("allocations", len(result.Allocations)))
	return result, nil
}

// =============================================================================
// DELETION
// =============================================================================

// DeletePayment removes a payment and reverses its allocations exactly.
// Returns ErrRecordNotFound for an unknown payment and an allocation
// inconsistency when the ledgers no longer match the allocation rows.
func (s *Service) DeletePayment(ctx context.Context, id engine.PaymentID) error {
	err := s.store.WithTx(ctx, func(tx engine.Store) error {
		payment, err := tx.GetPayment(ctx, id)
		if err != nil {
			return err
		}
		allocations, err := tx.AllocationsByPayment(ctx, id)
		if err != nil {
			return err
		}

		records := make([]*engine.EarningsRecord, 0, len(allocations))
		for _, a := range allocations {
			rec, err := tx.GetEarnings(ctx, a.RecordID)
			if err != nil {
				return &engine.AllocationInconsistencyError{
					PaymentID: id,
					RecordID:  a.RecordID,
					Reason:    "earnings record no longer exists",
				}
			}
			records = append(records, rec)
		}

		if err := engine.Reverse(id, allocations, records); err != nil {
			return err
		}
		for _, rec := range records {
			if err := tx.UpdateEarningsLedger(ctx, rec); err != nil {
				return err
			}
		}
		if err := tx.DeleteAllocationsByPayment(ctx, id); err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, id); err != nil {
			return err
		}

		s.log.Info("payment deleted",
			zap.String("payment_id", string(id)),
			zap.String("payee_id", string(payment.PayeeID)),
			zap.Int("allocations_reversed", len(allocations)))
		return nil
	})
	return err
}

// =============================================================================
// PREVIEW & QUERIES
// =============================================================================

// PreviewAllocation shows how a payment of the given amount would be
// distributed, without persisting anything.
func (s *Service) PreviewAllocation(ctx context.Context, payeeID engine.PayeeID, amount decimal.Decimal) (engine.AllocationPlan, error) {
	if !amount.IsPositive() {
		return engine.AllocationPlan{}, &engine.ValidationError{Field: "amount", Message: "payment amount must be positive"}
	}
	records, err := s.store.OutstandingEarnings(ctx, payeeID)
	if err != nil {
		return engine.AllocationPlan{}, err
	}
	return engine.PlanFIFO(amount, records), nil
}

// Payments returns a payee's payments, newest first.
func (s *Service) Payments(ctx context.Context, payeeID engine.PayeeID) ([]*engine.Payment, error) {
	return s.store.PaymentsByPayee(ctx, payeeID)
}

// Payment returns one payment with its allocations.
func (s *Service) Payment(ctx context.Context, id engine.PaymentID) (*engine.Payment, []engine.Allocation, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	allocations, err := s.store.AllocationsByPayment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return payment, allocations, nil
}
