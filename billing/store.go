/*
store.go - Persistence interfaces for bills and the ledger

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never talks SQL; it asks a Store for rows and runs multi-row writes
  through TxStore.WithTx so a bill write and its ledger posting commit or
  roll back together.

KEY INTERFACES:
  BillStore:    Bill rows (create, update, delete, lookup, search)
  LedgerStore:  Income and expense rows
  Store:        Both of the above
  TxStore:      Store plus WithTx for atomic multi-table writes

ERROR CONTRACT:
  Lookups and mutations of a missing id return ErrBillNotFound,
  ErrIncomeNotFound or ErrExpenseNotFound. A serial-number uniqueness
  violation returns ErrDuplicateSerial. Anything else is a storage fault.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - billing/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Sole user of WithTx
  - ledger.go: Appends postings through the transactional Store
*/
package billing

import "context"

// =============================================================================
// STORE - Interfaces for bill and ledger persistence
// =============================================================================

// BillStore owns bill rows.
type BillStore interface {
	// InsertBill persists b and sets b.ID and b.CreatedAt.
	InsertBill(ctx context.Context, b *Bill) error

	// UpdateBill overwrites every mutable column of the bill with b.ID.
	// CreatedAt is never changed.
	UpdateBill(ctx context.Context, b Bill) error

	// DeleteBill hard-deletes a bill. Ledger entries are left alone.
	DeleteBill(ctx context.Context, id BillID) error

	GetBill(ctx context.Context, id BillID) (*Bill, error)

	// ListBills returns every bill, most recent id first.
	ListBills(ctx context.Context) ([]Bill, error)

	// SearchBills matches term case-insensitively as a substring of the
	// serial number, customer name, mobile number, product size,
	// thickness, current status or payment status. Most recent id first.
	SearchBills(ctx context.Context, term string) ([]Bill, error)

	// SerialsWithPrefix returns every serial number starting with prefix.
	SerialsWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// PendingBills returns bills whose status is NOT_PAID.
	PendingBills(ctx context.Context) ([]Bill, error)
}

// LedgerStore owns income and expense rows.
type LedgerStore interface {
	// InsertIncome persists e and sets e.ID.
	InsertIncome(ctx context.Context, e *IncomeEntry) error
	UpdateIncome(ctx context.Context, e IncomeEntry) error
	DeleteIncome(ctx context.Context, id EntryID) error
	GetIncome(ctx context.Context, id EntryID) (*IncomeEntry, error)

	// ListIncome returns every income entry, newest date first, then id.
	ListIncome(ctx context.Context) ([]IncomeEntry, error)

	// HasPosting reports whether billID already has a posting of kind.
	HasPosting(ctx context.Context, billID BillID, kind PostingKind) (bool, error)

	// InsertExpense persists e and sets e.ID.
	InsertExpense(ctx context.Context, e *ExpenseEntry) error
	UpdateExpense(ctx context.Context, e ExpenseEntry) error
	DeleteExpense(ctx context.Context, id EntryID) error
	GetExpense(ctx context.Context, id EntryID) (*ExpenseEntry, error)

	// ListExpenses returns every expense, newest date first, then id.
	ListExpenses(ctx context.Context) ([]ExpenseEntry, error)
}

// Store is the full persistence surface.
type Store interface {
	BillStore
	LedgerStore
}

// TxStore extends Store with transactional operations.
type TxStore interface {
	Store

	// WithTx runs fn inside one transaction. Writes are serialized: only
	// one WithTx body runs at a time. If fn returns an error every write
	// made through the Store passed to fn is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
