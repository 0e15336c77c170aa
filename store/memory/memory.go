// Package memory provides an in-memory engine.TxStore for testing and dev.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/payroll-engine/engine"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory keeps everything in maps. Records are deep-copied on the way in
// and out so callers never share mutable state with the store.
type Memory struct {
	mu          sync.RWMutex
	earnings    map[engine.RecordID]*engine.EarningsRecord
	payments    map[engine.PaymentID]*engine.Payment
	allocations map[engine.PaymentID][]engine.Allocation
	splits      map[engine.PaystubID][]engine.DepositSplit
}

func NewMemory() *Memory {
	return &Memory{
		earnings:    make(map[engine.RecordID]*engine.EarningsRecord),
		payments:    make(map[engine.PaymentID]*engine.Payment),
		allocations: make(map[engine.PaymentID][]engine.Allocation),
		splits:      make(map[engine.PaystubID][]engine.DepositSplit),
	}
}

// =============================================================================
// EARNINGS RECORDS
// =============================================================================

func (m *Memory) UpsertEarnings(_ context.Context, rec *engine.EarningsRecord) (*engine.EarningsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertEarningsLocked(rec)
}

func (m *Memory) upsertEarningsLocked(rec *engine.EarningsRecord) (*engine.EarningsRecord, error) {
	now := time.Now().UTC()
	out := *rec

	if existing := m.findByIdentityLocked(rec.AssignmentID, rec.PaystubID, rec.PayeeKind); existing != nil {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
		out.AmountPaid = existing.AmountPaid
		out.RefreshLedger()
	} else {
		if out.ID == "" {
			out.ID = engine.RecordID(uuid.NewString())
		}
		out.CreatedAt = now
	}
	out.UpdatedAt = now

	stored := out
	m.earnings[out.ID] = &stored
	return &out, nil
}

func (m *Memory) findByIdentityLocked(assignmentID engine.AssignmentID, paystubID engine.PaystubID, kind engine.PayeeKind) *engine.EarningsRecord {
	for _, rec := range m.earnings {
		if rec.AssignmentID == assignmentID && rec.PaystubID == paystubID && rec.PayeeKind == kind {
			return rec
		}
	}
	return nil
}

func (m *Memory) GetEarnings(_ context.Context, id engine.RecordID) (*engine.EarningsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEarningsLocked(id)
}

func (m *Memory) getEarningsLocked(id engine.RecordID) (*engine.EarningsRecord, error) {
	rec, ok := m.earnings[id]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}

func (m *Memory) EarningsByPaystub(_ context.Context, paystubID engine.PaystubID) ([]*engine.EarningsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEarningsLocked(func(r *engine.EarningsRecord) bool {
		return r.PaystubID == paystubID
	}, byPayee), nil
}

func (m *Memory) EarningsByPayee(_ context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterEarningsLocked(func(r *engine.EarningsRecord) bool {
		return r.PayeeID == payeeID
	}, byPeriodDesc), nil
}

func (m *Memory) OutstandingEarnings(_ context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outstandingLocked(payeeID), nil
}

func (m *Memory) outstandingLocked(payeeID engine.PayeeID) []*engine.EarningsRecord {
	return m.filterEarningsLocked(func(r *engine.EarningsRecord) bool {
		return r.PayeeID == payeeID && r.Outstanding()
	}, byPeriodAsc)
}

type lessFn func(a, b *engine.EarningsRecord) bool

func byPeriodAsc(a, b *engine.EarningsRecord) bool  { return a.PeriodBegin.Before(b.PeriodBegin) }
func byPeriodDesc(a, b *engine.EarningsRecord) bool { return b.PeriodBegin.Before(a.PeriodBegin) }
func byPayee(a, b *engine.EarningsRecord) bool {
	if a.PayeeKind != b.PayeeKind {
		return a.PayeeKind < b.PayeeKind
	}
	return a.PayeeID < b.PayeeID
}

func (m *Memory) filterEarningsLocked(keep func(*engine.EarningsRecord) bool, less lessFn) []*engine.EarningsRecord {
	var out []*engine.EarningsRecord
	for _, rec := range m.earnings {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (m *Memory) UpdateEarningsLedger(_ context.Context, rec *engine.EarningsRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLedgerLocked(rec)
}

func (m *Memory) updateLedgerLocked(rec *engine.EarningsRecord) error {
	stored, ok := m.earnings[rec.ID]
	if !ok {
		return engine.ErrRecordNotFound
	}
	stored.ExpectedEarnings = rec.ExpectedEarnings
	stored.ActualPayments = rec.ActualPayments
	stored.PaymentVariance = rec.PaymentVariance
	stored.VarianceStatus = rec.VarianceStatus
	stored.ReconciliationApplied = rec.ReconciliationApplied
	stored.PaymentStatus = rec.PaymentStatus
	stored.AmountPaid = rec.AmountPaid
	stored.AmountPending = rec.AmountPending
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// =============================================================================
// PAYMENTS & ALLOCATIONS
// =============================================================================

func (m *Memory) InsertPayment(_ context.Context, p *engine.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id engine.PaymentID) (*engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPaymentLocked(id)
}

func (m *Memory) getPaymentLocked(id engine.PaymentID) (*engine.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, engine.ErrRecordNotFound
	}
	out := *p
	return &out, nil
}

func (m *Memory) PaymentsByPayee(_ context.Context, payeeID engine.PayeeID) ([]*engine.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*engine.Payment
	for _, p := range m.payments {
		if p.PayeeID == payeeID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out, nil
}

func (m *Memory) DeletePayment(_ context.Context, id engine.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletePaymentLocked(id)
}

func (m *Memory) deletePaymentLocked(id engine.PaymentID) error {
	if _, ok := m.payments[id]; !ok {
		return engine.ErrRecordNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) InsertAllocations(_ context.Context, allocs []engine.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertAllocationsLocked(allocs)
	return nil
}

func (m *Memory) insertAllocationsLocked(allocs []engine.Allocation) {
	for _, a := range allocs {
		m.allocations[a.PaymentID] = append(m.allocations[a.PaymentID], a)
	}
}

func (m *Memory) AllocationsByPayment(_ context.Context, id engine.PaymentID) ([]engine.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.Allocation{}, m.allocations[id]...), nil
}

func (m *Memory) DeleteAllocationsByPayment(_ context.Context, id engine.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allocations, id)
	return nil
}

// =============================================================================
// DEPOSIT SPLITS
// =============================================================================

func (m *Memory) ReplaceDepositSplits(_ context.Context, paystubID engine.PaystubID, splits []engine.DepositSplit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.splits[paystubID] = append([]engine.DepositSplit{}, splits...)
	return nil
}

func (m *Memory) DepositSplitsByPaystub(_ context.Context, paystubID engine.PaystubID) ([]engine.DepositSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]engine.DepositSplit{}, m.splits[paystubID]...), nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot taken before fn and restored when fn fails.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(engine.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txView{parent: tm}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	earnings    map[engine.RecordID]*engine.EarningsRecord
	payments    map[engine.PaymentID]*engine.Payment
	allocations map[engine.PaymentID][]engine.Allocation
	splits      map[engine.PaystubID][]engine.DepositSplit
}

func (tm *TxMemory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		earnings:    make(map[engine.RecordID]*engine.EarningsRecord, len(tm.earnings)),
		payments:    make(map[engine.PaymentID]*engine.Payment, len(tm.payments)),
		allocations: make(map[engine.PaymentID][]engine.Allocation, len(tm.allocations)),
		splits:      make(map[engine.PaystubID][]engine.DepositSplit, len(tm.splits)),
	}
	for id, rec := range tm.earnings {
		cp := *rec
		snap.earnings[id] = &cp
	}
	for id, p := range tm.payments {
		cp := *p
		snap.payments[id] = &cp
	}
	for id, allocs := range tm.allocations {
		snap.allocations[id] = append([]engine.Allocation{}, allocs...)
	}
	for id, splits := range tm.splits {
		snap.splits[id] = append([]engine.DepositSplit{}, splits...)
	}
	return snap
}

func (tm *TxMemory) restore(snap memorySnapshot) {
	tm.earnings = snap.earnings
	tm.payments = snap.payments
	tm.allocations = snap.allocations
	tm.splits = snap.splits
}

// txView routes Store calls to the parent without re-locking.
type txView struct {
	parent *TxMemory
}

func (tv *txView) UpsertEarnings(_ context.Context, rec *engine.EarningsRecord) (*engine.EarningsRecord, error) {
	return tv.parent.upsertEarningsLocked(rec)
}

func (tv *txView) GetEarnings(_ context.Context, id engine.RecordID) (*engine.EarningsRecord, error) {
	return tv.parent.getEarningsLocked(id)
}

func (tv *txView) EarningsByPaystub(_ context.Context, paystubID engine.PaystubID) ([]*engine.EarningsRecord, error) {
	return tv.parent.filterEarningsLocked(func(r *engine.EarningsRecord) bool {
		return r.PaystubID == paystubID
	}, byPayee), nil
}

func (tv *txView) EarningsByPayee(_ context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return tv.parent.filterEarningsLocked(func(r *engine.EarningsRecord) bool {
		return r.PayeeID == payeeID
	}, byPeriodDesc), nil
}

func (tv *txView) OutstandingEarnings(_ context.Context, payeeID engine.PayeeID) ([]*engine.EarningsRecord, error) {
	return tv.parent.outstandingLocked(payeeID), nil
}

func (tv *txView) UpdateEarningsLedger(_ context.Context, rec *engine.EarningsRecord) error {
	return tv.parent.updateLedgerLocked(rec)
}

func (tv *txView) InsertPayment(_ context.Context, p *engine.Payment) error {
	cp := *p
	tv.parent.payments[p.ID] = &cp
	return nil
}

func (tv *txView) GetPayment(_ context.Context, id engine.PaymentID) (*engine.Payment, error) {
	return tv.parent.getPaymentLocked(id)
}

func (tv *txView) PaymentsByPayee(_ context.Context, payeeID engine.PayeeID) ([]*engine.Payment, error) {
	var out []*engine.Payment
	for _, p := range tv.parent.payments {
		if p.PayeeID == payeeID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out, nil
}

func (tv *txView) DeletePayment(_ context.Context, id engine.PaymentID) error {
	return tv.parent.deletePaymentLocked(id)
}

func (tv *txView) InsertAllocations(_ context.Context, allocs []engine.Allocation) error {
	tv.parent.insertAllocationsLocked(allocs)
	return nil
}

func (tv *txView) AllocationsByPayment(_ context.Context, id engine.PaymentID) ([]engine.Allocation, error) {
	return append([]engine.Allocation{}, tv.parent.allocations[id]...), nil
}

func (tv *txView) DeleteAllocationsByPayment(_ context.Context, id engine.PaymentID) error {
	delete(tv.parent.allocations, id)
	return nil
}

func (tv *txView) ReplaceDepositSplits(_ context.Context, paystubID engine.PaystubID, splits []engine.DepositSplit) error {
	tv.parent.splits[paystubID] = append([]engine.DepositSplit{}, splits...)
	return nil
}

func (tv *txView) DepositSplitsByPaystub(_ context.Context, paystubID engine.PaystubID) ([]engine.DepositSplit, error) {
	return append([]engine.DepositSplit{}, tv.parent.splits[paystubID]...), nil
}
