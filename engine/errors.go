/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All engine error kinds in one place. Callers (HTTP layer, services)
  classify with errors.Is/As and map to client-facing statuses:
  400 for validation and reconciliation failures, 409 for allocation
  inconsistencies, 500 for everything else.

ERROR CATEGORIES:
  1. Validation errors  - malformed contracts, lines, or allocation requests
  2. Reconciliation errors - computed totals diverge from the employer gross
  3. Allocation inconsistencies - a reversal that cannot complete in full

NOTE:
  A payment variance (over/underpaid) is NOT an error. It is a first-class
  classified outcome recorded on the earnings record by the reconciler.
*/
package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrReconciliation is returned when payee total + margin diverges from
	// the employer's reported gross pay beyond ReconcileTolerance.
	ErrReconciliation = errors.New("earnings do not reconcile against gross pay")

	// ErrAllocationInconsistency is returned when a payment deletion cannot
	// fully reverse its allocations. Nothing is partially reversed.
	ErrAllocationInconsistency = errors.New("allocations cannot be fully reversed")

	// ErrRecordNotFound is returned when a referenced earnings record,
	// payment, or paystub does not exist.
	ErrRecordNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input: a contradictory rate contract,
// a malformed pay line, or a manual allocation exceeding pending.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReconciliationError reports the three money totals that failed to agree.
// The record is not persisted when this is returned.
type ReconciliationError struct {
	PayeeTotal decimal.Decimal
	Margin     decimal.Decimal
	GrossPay   decimal.Decimal
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("earnings do not add up: payee %s + margin %s != gross %s",
		e.PayeeTotal.StringFixed(2), e.Margin.StringFixed(2), e.GrossPay.StringFixed(2))
}

func (e *ReconciliationError) Unwrap() error { return ErrReconciliation }

// AllocationInconsistencyError identifies which allocation blocked a reversal.
type AllocationInconsistencyError struct {
	PaymentID PaymentID
	RecordID  RecordID
	Reason    string
}

func (e *AllocationInconsistencyError) Error() string {
	return fmt.Sprintf("cannot reverse payment %s against record %s: %s",
		e.PaymentID, e.RecordID, e.Reason)
}

func (e *AllocationInconsistencyError) Unwrap() error { return ErrAllocationInconsistency }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrReconciliation)
}

// IsConflict reports whether the error should surface as a conflict (409).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAllocationInconsistency)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
