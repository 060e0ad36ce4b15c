// Package store provides in-memory billing.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type postingKey struct {
	BillID billing.BillID
	Kind   billing.PostingKind
}

// Memory keeps bills and ledger rows in maps. It enforces the same
// uniqueness rules as the SQLite store.
type Memory struct {
	mu       sync.RWMutex
	bills    map[billing.BillID]billing.Bill
	serials  map[string]billing.BillID
	income   map[billing.EntryID]billing.IncomeEntry
	postings map[postingKey]billing.EntryID // advances only
	expenses map[billing.EntryID]billing.ExpenseEntry

	lastBill    int64
	lastIncome  int64
	lastExpense int64

	incomeFault error
}

func NewMemory() *Memory {
	return &Memory{
		bills:    make(map[billing.BillID]billing.Bill),
		serials:  make(map[string]billing.BillID),
		income:   make(map[billing.EntryID]billing.IncomeEntry),
		postings: make(map[postingKey]billing.EntryID),
		expenses: make(map[billing.EntryID]billing.ExpenseEntry),
	}
}

// FailIncomeWrites makes every later income insert return err. Pass nil
// to clear. Used to exercise rollback.
func (m *Memory) FailIncomeWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomeFault = err
}

// ---- bills ----

func (m *Memory) InsertBill(_ context.Context, b *billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBillLocked(b)
}

func (m *Memory) UpdateBill(_ context.Context, b billing.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBillLocked(b)
}

func (m *Memory) DeleteBill(_ context.Context, id billing.BillID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteBillLocked(id)
}

func (m *Memory) GetBill(_ context.Context, id billing.BillID) (*billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBillLocked(id)
}

func (m *Memory) ListBills(_ context.Context) ([]billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterBillsLocked(func(billing.Bill) bool { return true }), nil
}

func (m *Memory) SearchBills(_ context.Context, term string) ([]billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchBillsLocked(term), nil
}

func (m *Memory) PendingBills(_ context.Context) ([]billing.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterBillsLocked(isPending), nil
}

func (m *Memory) SerialsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.serialsLocked(prefix), nil
}

// ---- income ----

func (m *Memory) InsertIncome(_ context.Context, e *billing.IncomeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertIncomeLocked(e)
}

func (m *Memory) UpdateIncome(_ context.Context, e billing.IncomeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateIncomeLocked(e)
}

func (m *Memory) DeleteIncome(_ context.Context, id billing.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteIncomeLocked(id)
}

func (m *Memory) GetIncome(_ context.Context, id billing.EntryID) (*billing.IncomeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getIncomeLocked(id)
}

func (m *Memory) ListIncome(_ context.Context) ([]billing.IncomeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listIncomeLocked(), nil
}

func (m *Memory) HasPosting(_ context.Context, billID billing.BillID, kind billing.PostingKind) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasPostingLocked(billID, kind), nil
}

// ---- expenses ----

func (m *Memory) InsertExpense(_ context.Context, e *billing.ExpenseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertExpenseLocked(e)
}

func (m *Memory) UpdateExpense(_ context.Context, e billing.ExpenseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateExpenseLocked(e)
}

func (m *Memory) DeleteExpense(_ context.Context, id billing.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteExpenseLocked(id)
}

func (m *Memory) GetExpense(_ context.Context, id billing.EntryID) (*billing.ExpenseEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExpenseLocked(id)
}

func (m *Memory) ListExpenses(_ context.Context) ([]billing.ExpenseEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listExpensesLocked(), nil
}

// =============================================================================
// LOCKED HELPERS - caller holds m.mu
// =============================================================================

func (m *Memory) insertBillLocked(b *billing.Bill) error {
	if _, taken := m.serials[b.SerialNumber]; taken {
		return billing.ErrDuplicateSerial
	}
	m.lastBill++
	b.ID = billing.BillID(m.lastBill)
	b.CreatedAt = time.Now().UTC().Truncate(time.Second)
	m.bills[b.ID] = *b
	m.serials[b.SerialNumber] = b.ID
	return nil
}

func (m *Memory) updateBillLocked(b billing.Bill) error {
	prev, ok := m.bills[b.ID]
	if !ok {
		return billing.ErrBillNotFound
	}
	if holder, taken := m.serials[b.SerialNumber]; taken && holder != b.ID {
		return billing.ErrDuplicateSerial
	}
	delete(m.serials, prev.SerialNumber)
	b.CreatedAt = prev.CreatedAt
	m.bills[b.ID] = b
	m.serials[b.SerialNumber] = b.ID
	return nil
}

func (m *Memory) deleteBillLocked(id billing.BillID) error {
	b, ok := m.bills[id]
	if !ok {
		return billing.ErrBillNotFound
	}
	delete(m.bills, id)
	delete(m.serials, b.SerialNumber)
	return nil
}

func (m *Memory) getBillLocked(id billing.BillID) (*billing.Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return nil, billing.ErrBillNotFound
	}
	return &b, nil
}

func isPending(b billing.Bill) bool {
	return b.PaymentStatus == billing.StatusNotPaid
}

func (m *Memory) searchBillsLocked(term string) []billing.Bill {
	needle := strings.ToLower(term)
	return m.filterBillsLocked(func(b billing.Bill) bool {
		for _, field := range []string{
			b.SerialNumber, b.CustomerName, b.MobileNumber, b.ProductSize,
			b.Thickness, b.CurrentStatus, string(b.PaymentStatus),
		} {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
		return false
	})
}

func (m *Memory) filterBillsLocked(keep func(billing.Bill) bool) []billing.Bill {
	var out []billing.Bill
	for _, b := range m.bills {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *Memory) serialsLocked(prefix string) []string {
	var out []string
	for sn := range m.serials {
		if strings.HasPrefix(sn, prefix) {
			out = append(out, sn)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Memory) insertIncomeLocked(e *billing.IncomeEntry) error {
	if m.incomeFault != nil {
		return m.incomeFault
	}
	key := postingKey{BillID: e.BillID, Kind: e.PostingKind}
	unique := e.BillID != 0 && e.PostingKind.OncePerBill()
	if unique {
		if _, exists := m.postings[key]; exists {
			return billing.ErrDuplicatePosting
		}
	}
	m.lastIncome++
	e.ID = billing.EntryID(m.lastIncome)
	m.income[e.ID] = *e
	if unique {
		m.postings[key] = e.ID
	}
	return nil
}

func (m *Memory) updateIncomeLocked(e billing.IncomeEntry) error {
	prev, ok := m.income[e.ID]
	if !ok {
		return billing.ErrIncomeNotFound
	}
	e.BillID = prev.BillID
	e.PostingKind = prev.PostingKind
	m.income[e.ID] = e
	return nil
}

func (m *Memory) deleteIncomeLocked(id billing.EntryID) error {
	e, ok := m.income[id]
	if !ok {
		return billing.ErrIncomeNotFound
	}
	delete(m.income, id)
	key := postingKey{BillID: e.BillID, Kind: e.PostingKind}
	if m.postings[key] == id {
		delete(m.postings, key)
	}
	return nil
}

func (m *Memory) getIncomeLocked(id billing.EntryID) (*billing.IncomeEntry, error) {
	e, ok := m.income[id]
	if !ok {
		return nil, billing.ErrIncomeNotFound
	}
	return &e, nil
}

func (m *Memory) listIncomeLocked() []billing.IncomeEntry {
	out := make([]billing.IncomeEntry, 0, len(m.income))
	for _, e := range m.income {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[j].Date, int64(out[i].ID), int64(out[j].ID))
	})
	return out
}

func (m *Memory) hasPostingLocked(billID billing.BillID, kind billing.PostingKind) bool {
	for _, e := range m.income {
		if e.BillID == billID && e.PostingKind == kind {
			return true
		}
	}
	return false
}

func (m *Memory) insertExpenseLocked(e *billing.ExpenseEntry) error {
	m.lastExpense++
	e.ID = billing.EntryID(m.lastExpense)
	m.expenses[e.ID] = *e
	return nil
}

func (m *Memory) updateExpenseLocked(e billing.ExpenseEntry) error {
	if _, ok := m.expenses[e.ID]; !ok {
		return billing.ErrExpenseNotFound
	}
	m.expenses[e.ID] = e
	return nil
}

func (m *Memory) deleteExpenseLocked(id billing.EntryID) error {
	if _, ok := m.expenses[id]; !ok {
		return billing.ErrExpenseNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *Memory) getExpenseLocked(id billing.EntryID) (*billing.ExpenseEntry, error) {
	e, ok := m.expenses[id]
	if !ok {
		return nil, billing.ErrExpenseNotFound
	}
	return &e, nil
}

func (m *Memory) listExpensesLocked() []billing.ExpenseEntry {
	out := make([]billing.ExpenseEntry, 0, len(m.expenses))
	for _, e := range m.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[j].Date, int64(out[i].ID), int64(out[j].ID))
	})
	return out
}

// newerFirst orders by date descending, then id descending.
func newerFirst(di, dj time.Time, idi, idj int64) bool {
	if !di.Equal(dj) {
		return di.After(dj)
	}
	return idi > idj
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	bills    map[billing.BillID]billing.Bill
	serials  map[string]billing.BillID
	income   map[billing.EntryID]billing.IncomeEntry
	postings map[postingKey]billing.EntryID
	expenses map[billing.EntryID]billing.ExpenseEntry

	lastBill, lastIncome, lastExpense int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	return memorySnapshot{
		bills:       copyMap(tm.bills),
		serials:     copyMap(tm.serials),
		income:      copyMap(tm.income),
		postings:    copyMap(tm.postings),
		expenses:    copyMap(tm.expenses),
		lastBill:    tm.lastBill,
		lastIncome:  tm.lastIncome,
		lastExpense: tm.lastExpense,
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.bills = s.bills
	tm.serials = s.serials
	tm.income = s.income
	tm.postings = s.postings
	tm.expenses = s.expenses
	tm.lastBill = s.lastBill
	tm.lastIncome = s.lastIncome
	tm.lastExpense = s.lastExpense
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// txMemoryView is the Store handed to a WithTx body. The parent lock is
// already held, so it only calls the *Locked helpers.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) InsertBill(_ context.Context, b *billing.Bill) error {
	return tv.parent.insertBillLocked(b)
}

func (tv *txMemoryView) UpdateBill(_ context.Context, b billing.Bill) error {
	return tv.parent.updateBillLocked(b)
}

func (tv *txMemoryView) DeleteBill(_ context.Context, id billing.BillID) error {
	return tv.parent.deleteBillLocked(id)
}

func (tv *txMemoryView) GetBill(_ context.Context, id billing.BillID) (*billing.Bill, error) {
	return tv.parent.getBillLocked(id)
}

func (tv *txMemoryView) ListBills(_ context.Context) ([]billing.Bill, error) {
	return tv.parent.filterBillsLocked(func(billing.Bill) bool { return true }), nil
}

func (tv *txMemoryView) SearchBills(_ context.Context, term string) ([]billing.Bill, error) {
	return tv.parent.searchBillsLocked(term), nil
}

func (tv *txMemoryView) PendingBills(_ context.Context) ([]billing.Bill, error) {
	return tv.parent.filterBillsLocked(isPending), nil
}

func (tv *txMemoryView) SerialsWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return tv.parent.serialsLocked(prefix), nil
}

func (tv *txMemoryView) InsertIncome(_ context.Context, e *billing.IncomeEntry) error {
	return tv.parent.insertIncomeLocked(e)
}

func (tv *txMemoryView) UpdateIncome(_ context.Context, e billing.IncomeEntry) error {
	return tv.parent.updateIncomeLocked(e)
}

func (tv *txMemoryView) DeleteIncome(_ context.Context, id billing.EntryID) error {
	return tv.parent.deleteIncomeLocked(id)
}

func (tv *txMemoryView) GetIncome(_ context.Context, id billing.EntryID) (*billing.IncomeEntry, error) {
	return tv.parent.getIncomeLocked(id)
}

func (tv *txMemoryView) ListIncome(_ context.Context) ([]billing.IncomeEntry, error) {
	return tv.parent.listIncomeLocked(), nil
}

func (tv *txMemoryView) HasPosting(_ context.Context, billID billing.BillID, kind billing.PostingKind) (bool, error) {
	return tv.parent.hasPostingLocked(billID, kind), nil
}

func (tv *txMemoryView) InsertExpense(_ context.Context, e *billing.ExpenseEntry) error {
	return tv.parent.insertExpenseLocked(e)
}

func (tv *txMemoryView) UpdateExpense(_ context.Context, e billing.ExpenseEntry) error {
	return tv.parent.updateExpenseLocked(e)
}

func (tv *txMemoryView) DeleteExpense(_ context.Context, id billing.EntryID) error {
	return tv.parent.deleteExpenseLocked(id)
}

func (tv *txMemoryView) GetExpense(_ context.Context, id billing.EntryID) (*billing.ExpenseEntry, error) {
	return tv.parent.getExpenseLocked(id)
}

func (tv *txMemoryView) ListExpenses(_ context.Context) ([]billing.ExpenseEntry, error) {
	return tv.parent.listExpensesLocked(), nil
}
