/*
store.go - Persistence interface for earnings, payments, and splits

PURPOSE:
  Defines the interface between the engine's domain logic and the
  database. Services never touch SQL; they speak this interface, and
  multi-row operations run inside WithTx so a failure anywhere rolls
  back everything.

KEY INTERFACES:
  Store:   Earnings, payments, allocations, and deposit-split persistence
  TxStore: Store plus the WithTx transactional boundary

UPSERT CONTRACT:
  Earnings are keyed by (assignment, paystub, payee kind). Recomputing a
  period replaces the computed figures in place and preserves the payment
  ledger columns; it never creates a duplicate row for the same key.

TRANSACTIONAL OPERATIONS:
  - Recording a payment writes the payment row, its allocation rows, and
    every touched record's ledger in one transaction.
  - Deleting a payment reverses all of that in one transaction.
  - Reconciliation updates the record and reads splits under one view.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory with snapshot rollback, for tests

SEE ALSO:
  - allocate.go: Plans applied under WithTx
  - store/sqlite/sqlite.go: Concrete implementation
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Persistence for the reconciliation ledger
// =============================================================================

// Store persists earnings records, payments, allocations, and deposit
// splits. All methods honor ctx cancellation.
type Store interface {
	// --- Earnings records ---

	// UpsertEarnings inserts or replaces the record keyed by
	// (AssignmentID, PaystubID, PayeeKind). On replace, the computed
	// figures are overwritten and the existing payment ledger columns
	// (status, paid, pending) and ID are preserved unless the caller set
	// them. Returns the stored record with its ID populated.
	UpsertEarnings(ctx context.Context, rec *EarningsRecord) (*EarningsRecord, error)

	// GetEarnings returns one record by ID, or ErrRecordNotFound.
	GetEarnings(ctx context.Context, id RecordID) (*EarningsRecord, error)

	// EarningsByPaystub returns all records for a paystub, any payee kind.
	EarningsByPaystub(ctx context.Context, paystubID PaystubID) ([]*EarningsRecord, error)

	// EarningsByPayee returns a payee's records, newest period first.
	EarningsByPayee(ctx context.Context, payeeID PayeeID) ([]*EarningsRecord, error)

	// OutstandingEarnings returns a payee's unpaid and partially paid
	// records ordered by period-begin ascending, the allocation order.
	OutstandingEarnings(ctx context.Context, payeeID PayeeID) ([]*EarningsRecord, error)

	// UpdateEarningsLedger persists the mutable ledger columns of an
	// existing record: dual-tracking fields, paid, pending, and status.
	UpdateEarningsLedger(ctx context.Context, rec *EarningsRecord) error

	// --- Payments & allocations ---

	// InsertPayment persists a payment row.
	InsertPayment(ctx context.Context, p *Payment) error

	// GetPayment returns one payment by ID, or ErrRecordNotFound.
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)

	// PaymentsByPayee returns a payee's payments, newest first.
	PaymentsByPayee(ctx context.Context, payeeID PayeeID) ([]*Payment, error)

	// DeletePayment removes a payment row. Allocations must already be
	// deleted; implementations may enforce this with a foreign key.
	DeletePayment(ctx context.Context, id PaymentID) error

	// InsertAllocations persists a payment's allocation rows.
	InsertAllocations(ctx context.Context, allocs []Allocation) error

	// AllocationsByPayment returns the allocations of one payment.
	AllocationsByPayment(ctx context.Context, id PaymentID) ([]Allocation, error)

	// DeleteAllocationsByPayment removes all allocations of one payment.
	DeleteAllocationsByPayment(ctx context.Context, id PaymentID) error

	// --- Deposit splits ---

	// ReplaceDepositSplits swaps the full split set of a paystub.
	ReplaceDepositSplits(ctx context.Context, paystubID PaystubID, splits []DepositSplit) error

	// DepositSplitsByPaystub returns a paystub's splits.
	DepositSplitsByPaystub(ctx context.Context, paystubID PaystubID) ([]DepositSplit, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. The Store
	// handed to fn must not be retained past the call.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// SUMMARY - Aggregate view over a payee's ledger
// =============================================================================

// PayeeSummary aggregates a payee's records into totals for display.
type PayeeSummary struct {
	PayeeID          PayeeID
	TotalEarned      decimal.Decimal
	TotalPaid        decimal.Decimal
	TotalPending     decimal.Decimal
	RecordCount      int
	UnpaidCount      int
	OldestUnpaidDate *time.Time
}
