/*
Package sqlite provides the SQLite-backed implementation of engine.TxStore.

PURPOSE:
  Persists earnings records, payments, allocations, and deposit splits.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

MONEY REPRESENTATION:
  All decimal amounts are stored as TEXT in their exact string form and
  parsed back with shopspring/decimal. Floating-point columns never hold
  money.

KEY TABLES:
  earnings:       One row per (assignment, paystub, payee kind)
  payments:       Received lump sums
  allocations:    How payments were applied to earnings
  deposit_splits: Observed routing of a paystub's net pay

UPSERT ENFORCEMENT:
  idx_earnings_identity makes the (assignment_id, paystub_id, payee_kind)
  key unique. UpsertEarnings reads the existing row first and carries its
  ID and amount-paid forward, so recomputation can never fork a period
  into two rows or lose payment history.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, with WAL mode for better read
  concurrency and crash recovery. With PostgreSQL, database-level
  concurrency control handles this instead.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerline/payroll-engine/engine"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Earnings records: one per (assignment, paystub, payee kind)
	CREATE TABLE IF NOT EXISTS earnings (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		paystub_id TEXT NOT NULL,
		payee_id TEXT NOT NULL,
		payee_kind TEXT NOT NULL,
		period_begin TEXT NOT NULL,
		period_end TEXT NOT NULL,
		gross_pay TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		regular_earnings TEXT NOT NULL,
		incentive_share TEXT NOT NULL,
		total_earnings TEXT NOT NULL,
		margin TEXT NOT NULL,
		flat_hourly_rate TEXT NOT NULL DEFAULT '0',
		expected_earnings TEXT NOT NULL DEFAULT '0',
		actual_payments TEXT NOT NULL DEFAULT '0',
		payment_variance TEXT NOT NULL DEFAULT '0',
		variance_status TEXT NOT NULL DEFAULT '',
		reconciliation_applied INTEGER NOT NULL DEFAULT 0,
		payment_status TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		amount_pending TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: recomputing a period must replace, never duplicate
	CREATE UNIQUE INDEX IF NOT EXISTS idx_earnings_identity
		ON earnings(assignment_id, paystub_id, payee_kind);

	CREATE INDEX IF NOT EXISTS idx_earnings_payee
		ON earnings(payee_id, period_begin);
	CREATE INDEX IF NOT EXISTS idx_earnings_paystub
		ON earnings(paystub_id);
	-- Allocation hot path: outstanding records in FIFO order
	CREATE INDEX IF NOT EXISTS idx_earnings_payee_status
		ON earnings(payee_id, payment_status, period_begin);

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		payee_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		payment_date TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		recorded_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_payee
		ON payments(payee_id, payment_date DESC);

	-- Allocations: payment -> earnings applications
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL REFERENCES payments(id),
		record_id TEXT NOT NULL REFERENCES earnings(id),
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_payment
		ON allocations(payment_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_record
		ON allocations(record_id);

	-- Deposit splits: observed net-pay routing per paystub
	CREATE TABLE IF NOT EXISTS deposit_splits (
		id TEXT PRIMARY KEY,
		paystub_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		owner TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_splits_paystub
		ON deposit_splits(paystub_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EARNINGS RECORDS
// =============================================================================

const earningsColumns = `id, assignment_id, paystub_id, payee_id, payee_kind,
	period_begin, period_end, gross_pay, total_hours, regular_earnings,
	incentive_share, total_earnings, margin, flat_hourly_rate,
	expected_earnings, actual_payments, payment_variance, variance_status,
	reconciliation_applied, payment_status, amount_paid, amount_pending,
	created_at, updated_at`

// UpsertEarnings inserts or replaces the record for its identity key.
func (s *Store) UpsertEarnings(ctx context.Context, rec *engine.EarningsRecord) (*engine.EarningsRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertEarnings(ctx, s.db, rec)
}

func upsertEarnings(ctx context.Context, db dbtx, rec *engine.EarningsRecord) (*engine.EarningsRecord, error) {
	existing, err := earningsByIdentity(ctx, db, rec.AssignmentID, rec.PaystubID, rec.PayeeKind)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := *rec
	if existing != nil {
		// Carry payment history forward; the computed figures replace.
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
		out.AmountPaid = existing.AmountPaid
		out.RefreshLedger()
	} else {
		if out.ID == "" {
			out.ID = engine.RecordID(newID())
		}
		out.CreatedAt = now
	}
	out.UpdatedAt = now

	query := `
		INSERT INTO earnings (` + earningsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(assignment_id, paystub_id, payee_kind) DO UPDATE SET
			payee_id = excluded.payee_id,
			period_begin = excluded.period_begin,
			period_end = excluded.period_end,
			gross_pay = excluded.gross_pay,
			total_hours = excluded.total_hours,
			regular_earnings = excluded.regular_earnings,
			incentive_share = excluded.incentive_share,
			total_earnings = excluded.total_earnings,
			margin = excluded.margin,
			flat_hourly_rate = excluded.flat_hourly_rate,
			expected_earnings = excluded.expected_earnings,
			actual_payments = excluded.actual_payments,
			payment_variance = excluded.payment_variance,
			variance_status = excluded.variance_status,
			reconciliation_applied = excluded.reconciliation_applied,
			payment_status = excluded.payment_status,
			amount_paid = excluded.amount_paid,
			amount_pending = excluded.amount_pending,
			updated_at = excluded.updated_at
	`

	_, err = db.ExecContext(ctx, query,
		out.ID, out.AssignmentID, out.PaystubID, out.PayeeID, out.PayeeKind,
		out.PeriodBegin.Format(time.RFC3339), out.PeriodEnd.Format(time.RFC3339),
		out.GrossPay.String(), out.TotalHours.String(),
		out.RegularEarnings.String(), out.IncentiveShare.String(),
		out.TotalEarnings.String(), out.Margin.String(), out.FlatHourlyRate.String(),
		out.ExpectedEarnings.String(), out.ActualPayments.String(),
		out.PaymentVariance.String(), out.VarianceStatus,
		boolToInt(out.ReconciliationApplied),
		out.PaymentStatus, out.AmountPaid.String(), out.AmountPending.String(),
		out.CreatedAt.Format(time.RFC3339), out.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert earnings: %w", err)
	}
	return &out, nil
}

func earningsByIdentity(ctx context.Context, db dbtx, assignmentID engine.AssignmentID, paystubID engine.PaystubID, kind engine.PayeeKind) (*engine.EarningsRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+earningsColumns+` FROM earnings
		 WHERE assignment_id = ? AND paystub_id = ? AND payee_kind = ?`,
		assignmentID, paystubID, kind)

	rec, err := scanEarnings(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetEarnings returns one record by ID.
func (s *Store) GetEarnings(ctx context.Context, id engine.RecordID) (*engine.EarningsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEarnings(ctx, s.db, id)
}

func getEarnings(ctx context.Context, db dbtx, id engine.RecordID) (*engine.EarningsRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+earningsColumns+` FROM earnings WHERE id = ?`, id)
	rec, err := scanEarnings(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRecordNotFound
	}
	return rec, err
}

// EarningsByPaystub returns all records for a paystub.
func (s *Store) EarningsByPaystub(ctx context.Context, paystubID engine.PaystubID) ([]*engine.EarningsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEarnings(ctx, s.db,
		`SELECT `+earningsColumns+` FROM earnings WHERE paystub_id = ? ORDER BY payee_kind, payee_id`,
		paystubID)
}

// EarningsByPayee returns a payee's records, newest period first.
func (s *Store) EarningsByPayee(ctx context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryEarnings(ctx, s.db,
		`SELECT `+earningsColumns+` FROM earnings WHERE payee_id = ? ORDER BY period_begin DESC`,
		payeeID)
}

// OutstandingEarnings returns unpaid and partially paid records in FIFO order.
func (s *Store) OutstandingEarnings(ctx context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return outstandingEarnings(ctx, s.db, payeeID)
}

func outstandingEarnings(ctx context.Context, db dbtx, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return queryEarnings(ctx, db,
		`SELECT `+earningsColumns+` FROM earnings
		 WHERE payee_id = ? AND payment_status IN ('unpaid', 'partially_paid')
		 ORDER BY period_begin ASC, created_at ASC`,
		payeeID)
}

// UpdateEarningsLedger persists the mutable ledger columns of a record.
func (s *Store) UpdateEarningsLedger(ctx context.Context, rec *engine.EarningsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateEarningsLedger(ctx, s.db, rec)
}

func updateEarningsLedger(ctx context.Context, db dbtx, rec *engine.EarningsRecord) error {
	query := `
		UPDATE earnings SET
			expected_earnings = ?,
			actual_payments = ?,
			payment_variance = ?,
			variance_status = ?,
			reconciliation_applied = ?,
			payment_status = ?,
			amount_paid = ?,
			amount_pending = ?,
			updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		rec.ExpectedEarnings.String(), rec.ActualPayments.String(),
		rec.PaymentVariance.String(), rec.VarianceStatus,
		boolToInt(rec.ReconciliationApplied),
		rec.PaymentStatus, rec.AmountPaid.String(), rec.AmountPending.String(),
		time.Now().UTC().Format(time.RFC3339),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update earnings ledger: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrRecordNotFound
	}
	return nil
}

func queryEarnings(ctx context.Context, db dbtx, query string, args ...any) ([]*engine.EarningsRecord, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query earnings: %w", err)
	}
	defer rows.Close()

	var records []*engine.EarningsRecord
	for rows.Next() {
		rec, err := scanEarnings(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEarnings(row scanner) (*engine.EarningsRecord, error) {
	var (
		rec                       engine.EarningsRecord
		periodBegin, periodEnd    string
		grossPay, totalHours      string
		regular, incentive        string
		total, margin, flatRate   string
		expected, actual          string
		variance, varianceStatus  string
		reconciled                int
		paid, pending             string
		createdAt, updatedAt      string
	)

	err := row.Scan(
		&rec.ID, &rec.AssignmentID, &rec.PaystubID, &rec.PayeeID, &rec.PayeeKind,
		&periodBegin, &periodEnd, &grossPay, &totalHours, &regular,
		&incentive, &total, &margin, &flatRate,
		&expected, &actual, &variance, &varianceStatus,
		&reconciled, &rec.PaymentStatus, &paid, &pending,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.PeriodBegin, _ = time.Parse(time.RFC3339, periodBegin)
	rec.PeriodEnd, _ = time.Parse(time.RFC3339, periodEnd)
	rec.GrossPay = engine.MustDecimal(grossPay)
	rec.TotalHours = engine.MustDecimal(totalHours)
	rec.RegularEarnings = engine.MustDecimal(regular)
	rec.IncentiveShare = engine.MustDecimal(incentive)
	rec.TotalEarnings = engine.MustDecimal(total)
	rec.Margin = engine.MustDecimal(margin)
	rec.FlatHourlyRate = engine.MustDecimal(flatRate)
	rec.ExpectedEarnings = engine.MustDecimal(expected)
	rec.ActualPayments = engine.MustDecimal(actual)
	rec.PaymentVariance = engine.MustDecimal(variance)
	rec.VarianceStatus = engine.VarianceStatus(varianceStatus)
	rec.ReconciliationApplied = reconciled != 0
	rec.AmountPaid = engine.MustDecimal(paid)
	rec.AmountPending = engine.MustDecimal(pending)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// InsertPayment persists a payment row.
func (s *Store) InsertPayment(ctx context.Context, p *engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, db dbtx, p *engine.Payment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (id, payee_id, amount, method, payment_date, reference, notes, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PayeeID, p.Amount.String(), p.Method,
		p.Date.Format(time.RFC3339), p.Reference, p.Notes, p.RecordedBy,
		p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetPayment returns one payment by ID.
func (s *Store) GetPayment(ctx context.Context, id engine.PaymentID) (*engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, db dbtx, id engine.PaymentID) (*engine.Payment, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, payee_id, amount, method, payment_date, reference, notes, recorded_by, created_at
		FROM payments WHERE id = ?`, id)

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRecordNotFound
	}
	return p, err
}

// PaymentsByPayee returns a payee's payments, newest first.
func (s *Store) PaymentsByPayee(ctx context.Context, payeeID engine.PayeeID) ([]*engine.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payee_id, amount, method, payment_date, reference, notes, recorded_by, created_at
		FROM payments WHERE payee_id = ?
		ORDER BY payment_date DESC, created_at DESC`, payeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*engine.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row scanner) (*engine.Payment, error) {
	var (
		p               engine.Payment
		amount          string
		date, createdAt string
	)
	err := row.Scan(&p.ID, &p.PayeeID, &amount, &p.Method, &date,
		&p.Reference, &p.Notes, &p.RecordedBy, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Amount = engine.MustDecimal(amount)
	p.Date, _ = time.Parse(time.RFC3339, date)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

// DeletePayment removes a payment row.
func (s *Store) DeletePayment(ctx context.Context, id engine.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, db dbtx, id engine.PaymentID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrRecordNotFound
	}
	return nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// InsertAllocations persists allocation rows.
func (s *Store) InsertAllocations(ctx context.Context, allocs []engine.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAllocations(ctx, s.db, allocs)
}

func insertAllocations(ctx context.Context, db dbtx, allocs []engine.Allocation) error {
	for _, a := range allocs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO allocations (id, payment_id, record_id, amount, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.PaymentID, a.RecordID, a.Amount.String(),
			a.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}
	return nil
}

// AllocationsByPayment returns the allocations of one payment.
func (s *Store) AllocationsByPayment(ctx context.Context, id engine.PaymentID) ([]engine.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return allocationsByPayment(ctx, s.db, id)
}

func allocationsByPayment(ctx context.Context, db dbtx, id engine.PaymentID) ([]engine.Allocation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, payment_id, record_id, amount, created_at
		FROM allocations WHERE payment_id = ?
		ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []engine.Allocation
	for rows.Next() {
		var (
			a                 engine.Allocation
			amount, createdAt string
		)
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.RecordID, &amount, &createdAt); err != nil {
			return nil, err
		}
		a.Amount = engine.MustDecimal(amount)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// DeleteAllocationsByPayment removes all allocations of one payment.
func (s *Store) DeleteAllocationsByPayment(ctx context.Context, id engine.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAllocationsByPayment(ctx, s.db, id)
}

func deleteAllocationsByPayment(ctx context.Context, db dbtx, id engine.PaymentID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM allocations WHERE payment_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete allocations: %w", err)
	}
	return nil
}

// =============================================================================
// DEPOSIT SPLITS
// =============================================================================

// ReplaceDepositSplits swaps the full split set of a paystub.
func (s *Store) ReplaceDepositSplits(ctx context.Context, paystubID engine.PaystubID, splits []engine.DepositSplit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replaceDepositSplits(ctx, s.db, paystubID, splits)
}

func replaceDepositSplits(ctx context.Context, db dbtx, paystubID engine.PaystubID, splits []engine.DepositSplit) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM deposit_splits WHERE paystub_id = ?`, paystubID); err != nil {
		return fmt.Errorf("failed to clear deposit splits: %w", err)
	}
	for _, sp := range splits {
		_, err := db.ExecContext(ctx, `
			INSERT INTO deposit_splits (id, paystub_id, account_id, owner, amount, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sp.ID, paystubID, sp.AccountID, sp.Owner, sp.Amount.String(),
			sp.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert deposit split: %w", err)
		}
	}
	return nil
}

// DepositSplitsByPaystub returns a paystub's splits.
func (s *Store) DepositSplitsByPaystub(ctx context.Context, paystubID engine.PaystubID) ([]engine.DepositSplit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return depositSplitsByPaystub(ctx, s.db, paystubID)
}

func depositSplitsByPaystub(ctx context.Context, db dbtx, paystubID engine.PaystubID) ([]engine.DepositSplit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, paystub_id, account_id, owner, amount, created_at
		FROM deposit_splits WHERE paystub_id = ?
		ORDER BY created_at ASC, id ASC`, paystubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deposit splits: %w", err)
	}
	defer rows.Close()

	var splits []engine.DepositSplit
	for rows.Next() {
		var (
			sp                engine.DepositSplit
			amount, createdAt string
		)
		if err := rows.Scan(&sp.ID, &sp.PaystubID, &sp.AccountID, &sp.Owner, &amount, &createdAt); err != nil {
			return nil, err
		}
		sp.Amount = engine.MustDecimal(amount)
		sp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		splits = append(splits, sp)
	}
	return splits, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call through one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) UpsertEarnings(ctx context.Context, rec *engine.EarningsRecord) (*engine.EarningsRecord, error) {
	return upsertEarnings(ctx, ts.tx, rec)
}

func (ts *txStore) GetEarnings(ctx context.Context, id engine.RecordID) (*engine.EarningsRecord, error) {
	return getEarnings(ctx, ts.tx, id)
}

func (ts *txStore) EarningsByPaystub(ctx context.Context, paystubID engine.PaystubID) ([]*engine.EarningsRecord, error) {
	return queryEarnings(ctx, ts.tx,
		`SELECT `+earningsColumns+` FROM earnings WHERE paystub_id = ? ORDER BY payee_kind, payee_id`,
		paystubID)
}

func (ts *txStore) EarningsByPayee(ctx context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return queryEarnings(ctx, ts.tx,
		`SELECT `+earningsColumns+` FROM earnings WHERE payee_id = ? ORDER BY period_begin DESC`,
		payeeID)
}

func (ts *txStore) OutstandingEarnings(ctx context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return outstandingEarnings(ctx, ts.tx, payeeID)
}

func (ts *txStore) UpdateEarningsLedger(ctx context.Context, rec *engine.EarningsRecord) error {
	return updateEarningsLedger(ctx, ts.tx, rec)
}

func (ts *txStore) InsertPayment(ctx context.Context, p *engine.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txStore) GetPayment(ctx context.Context, id engine.PaymentID) (*engine.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) PaymentsByPayee(ctx context.Context, payeeID engine.PayeeID) ([]*engine.Payment, error) {
	rows, err := ts.tx.QueryContext(ctx, `
		SELECT id, payee_id, amount, method, payment_date, reference, notes, recorded_by, created_at
		FROM payments WHERE payee_id = ?
		ORDER BY payment_date DESC, created_at DESC`, payeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*engine.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (ts *txStore) DeletePayment(ctx context.Context, id engine.PaymentID) error {
	return deletePayment(ctx, ts.tx, id)
}

func (ts *txStore) InsertAllocations(ctx context.Context, allocs []engine.Allocation) error {
	return insertAllocations(ctx, ts.tx, allocs)
}

func (ts *txStore) AllocationsByPayment(ctx context.Context, id engine.PaymentID) ([]engine.Allocation, error) {
	return allocationsByPayment(ctx, ts.tx, id)
}

func (ts *txStore) DeleteAllocationsByPayment(ctx context.Context, id engine.PaymentID) error {
	return deleteAllocationsByPayment(ctx, ts.tx, id)
}

func (ts *txStore) ReplaceDepositSplits(ctx context.Context, paystubID engine.PaystubID, splits []engine.DepositSplit) error {
	return replaceDepositSplits(ctx, ts.tx, paystubID, splits)
}

func (ts *txStore) DepositSplitsByPaystub(ctx context.Context, paystubID engine.PaystubID) ([]engine.DepositSplit, error) {
	return depositSplitsByPaystub(ctx, ts.tx, paystubID)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"allocations", "payments", "deposit_splits", "earnings"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newID() string {
	return uuid.NewString()
}
