/*
Package sqlite provides a SQLite-backed implementation of billing.TxStore.

PURPOSE:
  Persists bills, income and expenses in a single SQLite file. The engine
  (billing.Engine) runs every multi-row write through WithTx so a bill
  and the income it posts commit together.

KEY TABLES:
  bills:              One row per order. serial_number is UNIQUE.
  income:             Money received. bill_id/posting_kind link postings
                      derived from bill events back to their bill.
  expenses:           Non-revenue outflows.
  schema_migrations:  Applied migration versions (see migrations.go).

INDEXES:
  - bills.serial_number UNIQUE:       sole enforcement of serial uniqueness
  - idx_income_bill_advance (partial): one advance posting per bill
  - idx_income_date, idx_expenses_date: newest-first listing

CONCURRENCY:
  Writes take sync.RWMutex's write lock, so within one process a
  transaction never interleaves with another write. The connection also
  uses _txlock=immediate: a transaction takes SQLite's RESERVED lock at
  BEGIN, so two processes sharing the file cannot both read the same
  serial maximum. The loser waits up to the busy timeout.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

MONEY AND DATES:
  Amounts are stored as decimal TEXT so they round-trip exactly.
  Calendar dates are YYYY-MM-DD, created_at is RFC3339.

USAGE:
  store, err := sqlite.New("./billing_data.db")
  if err != nil {
      log.Fatal().Err(err).Msg("open store")
  }
  defer store.Close()

  engine := billing.NewEngine(store)

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
  - migrations.go: Ordered schema migrations
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// driverName is go-sqlite3 with a casefold(text) function. SQLite's own
// LIKE and lower() fold ASCII only; search folds with strings.ToLower so
// it matches the in-memory store on names like "Ärzte".
const driverName = "sqlite3_billing"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("casefold", strings.ToLower, true)
		},
	})
}

// Store implements billing.TxStore using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log zerolog.Logger
}

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db:  db,
		log: log.Logger.With().Str("component", "sqlite").Logger(),
	}
	if _, err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// QUERIES - shared by Store and txStore
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements billing.Store over a *sql.DB or *sql.Tx. It does no
// locking of its own.
type queries struct {
	q queryer
}

const billColumns = `id, serial_number, customer_name, mobile_number, order_date, delivery_date,
	current_status, unit_price, advance_amount, advance_payment_mode, amount_due,
	payment_status, amount_due_payment_mode, product_size, thickness, quantity, created_at`

func (qs queries) InsertBill(ctx context.Context, b *billing.Bill) error {
	createdAt := time.Now().UTC().Truncate(time.Second)
	res, err := qs.q.ExecContext(ctx, `
		INSERT INTO bills
		(serial_number, customer_name, mobile_number, order_date, delivery_date,
		 current_status, unit_price, advance_amount, advance_payment_mode, amount_due,
		 payment_status, amount_due_payment_mode, product_size, thickness, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.SerialNumber,
		b.CustomerName,
		nullString(b.MobileNumber),
		b.OrderDate.Format(billing.DateLayout),
		b.DeliveryDate.Format(billing.DateLayout),
		b.CurrentStatus,
		b.UnitPrice.String(),
		b.AdvanceAmount.String(),
		string(b.AdvancePaymentMode),
		b.AmountDue.String(),
		string(b.PaymentStatus),
		nullString(string(b.AmountDuePaymentMode)),
		b.ProductSize,
		b.Thickness,
		b.Quantity,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return mapWriteError("insert bill", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read bill id: %w", err)
	}
	b.ID = billing.BillID(id)
	b.CreatedAt = createdAt
	return nil
}

func (qs queries) UpdateBill(ctx context.Context, b billing.Bill) error {
	res, err := qs.q.ExecContext(ctx, `
		UPDATE bills SET
			serial_number = ?, customer_name = ?, mobile_number = ?, order_date = ?,
			delivery_date = ?, current_status = ?, unit_price = ?, advance_amount = ?,
			advance_payment_mode = ?, amount_due = ?, payment_status = ?,
			amount_due_payment_mode = ?, product_size = ?, thickness = ?, quantity = ?
		WHERE id = ?`,
		b.SerialNumber,
		b.CustomerName,
		nullString(b.MobileNumber),
		b.OrderDate.Format(billing.DateLayout),
		b.DeliveryDate.Format(billing.DateLayout),
		b.CurrentStatus,
		b.UnitPrice.String(),
		b.AdvanceAmount.String(),
		string(b.AdvancePaymentMode),
		b.AmountDue.String(),
		string(b.PaymentStatus),
		nullString(string(b.AmountDuePaymentMode)),
		b.ProductSize,
		b.Thickness,
		b.Quantity,
		int64(b.ID),
	)
	if err != nil {
		return mapWriteError("update bill", err)
	}
	return requireAffected(res, billing.ErrBillNotFound)
}

func (qs queries) DeleteBill(ctx context.Context, id billing.BillID) error {
	res, err := qs.q.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	return requireAffected(res, billing.ErrBillNotFound)
}

func (qs queries) GetBill(ctx context.Context, id billing.BillID) (*billing.Bill, error) {
	row := qs.q.QueryRowContext(ctx, "SELECT "+billColumns+" FROM bills WHERE id = ?", int64(id))
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (qs queries) ListBills(ctx context.Context) ([]billing.Bill, error) {
	return qs.queryBills(ctx, "SELECT "+billColumns+" FROM bills ORDER BY id DESC")
}

func (qs queries) SearchBills(ctx context.Context, term string) ([]billing.Bill, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	query := "SELECT " + billColumns + ` FROM bills
		WHERE casefold(serial_number) LIKE ? ESCAPE '\'
		   OR casefold(customer_name) LIKE ? ESCAPE '\'
		   OR casefold(coalesce(mobile_number, '')) LIKE ? ESCAPE '\'
		   OR casefold(coalesce(product_size, '')) LIKE ? ESCAPE '\'
		   OR casefold(coalesce(thickness, '')) LIKE ? ESCAPE '\'
		   OR casefold(coalesce(current_status, '')) LIKE ? ESCAPE '\'
		   OR casefold(payment_status) LIKE ? ESCAPE '\'
		ORDER BY id DESC`
	return qs.queryBills(ctx, query, pattern, pattern, pattern, pattern, pattern, pattern, pattern)
}

func (qs queries) PendingBills(ctx context.Context) ([]billing.Bill, error) {
	return qs.queryBills(ctx, "SELECT "+billColumns+" FROM bills WHERE payment_status = ? ORDER BY id DESC",
		string(billing.StatusNotPaid))
}

func (qs queries) SerialsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := qs.q.QueryContext(ctx,
		"SELECT serial_number FROM bills WHERE substr(serial_number, 1, ?) = ? ORDER BY serial_number",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query serials: %w", err)
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return nil, err
		}
		serials = append(serials, sn)
	}
	return serials, rows.Err()
}

func (qs queries) queryBills(ctx context.Context, query string, args ...any) ([]billing.Bill, error) {
	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []billing.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (billing.Bill, error) {
	var (
		b            billing.Bill
		id           int64
		mobile       sql.NullString
		orderDate    sql.NullString
		deliveryDate sql.NullString
		status       sql.NullString
		unitPrice    sql.NullString
		advance      sql.NullString
		advanceMode  sql.NullString
		amountDue    sql.NullString
		payStatus    sql.NullString
		dueMode      sql.NullString
		productSize  sql.NullString
		thickness    sql.NullString
		quantity     sql.NullInt64
		createdAt    sql.NullString
	)

	err := row.Scan(
		&id, &b.SerialNumber, &b.CustomerName, &mobile, &orderDate, &deliveryDate,
		&status, &unitPrice, &advance, &advanceMode, &amountDue,
		&payStatus, &dueMode, &productSize, &thickness, &quantity, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("failed to scan bill: %w", err)
	}

	b.ID = billing.BillID(id)
	b.MobileNumber = mobile.String
	b.OrderDate = parseDate(orderDate.String)
	b.DeliveryDate = parseDate(deliveryDate.String)
	b.CurrentStatus = status.String
	b.UnitPrice = parseDecimal(unitPrice.String)
	b.AdvanceAmount = parseDecimal(advance.String)
	b.AdvancePaymentMode = billing.PaymentMode(advanceMode.String)
	b.AmountDue = parseDecimal(amountDue.String)
	b.PaymentStatus = billing.PaymentStatus(payStatus.String)
	b.AmountDuePaymentMode = billing.PaymentMode(dueMode.String)
	b.ProductSize = productSize.String
	b.Thickness = thickness.String
	b.Quantity = quantity.Int64
	if !quantity.Valid {
		b.Quantity = 1
	}
	b.CreatedAt = parseTimestamp(createdAt.String)
	return b, nil
}

// ---- income ----

func (qs queries) InsertIncome(ctx context.Context, e *billing.IncomeEntry) error {
	res, err := qs.q.ExecContext(ctx, `
		INSERT INTO income (date, description, amount, payment_mode, bill_id, posting_kind)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Date.Format(billing.DateLayout),
		e.Description,
		e.Amount.String(),
		nullString(string(e.PaymentMode)),
		nullBillID(e.BillID),
		nullString(string(e.PostingKind)),
	)
	if err != nil {
		return mapWriteError("insert income", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read income id: %w", err)
	}
	e.ID = billing.EntryID(id)
	return nil
}

func (qs queries) UpdateIncome(ctx context.Context, e billing.IncomeEntry) error {
	res, err := qs.q.ExecContext(ctx,
		"UPDATE income SET date = ?, description = ?, amount = ?, payment_mode = ? WHERE id = ?",
		e.Date.Format(billing.DateLayout),
		e.Description,
		e.Amount.String(),
		nullString(string(e.PaymentMode)),
		int64(e.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update income: %w", err)
	}
	return requireAffected(res, billing.ErrIncomeNotFound)
}

func (qs queries) DeleteIncome(ctx context.Context, id billing.EntryID) error {
	res, err := qs.q.ExecContext(ctx, "DELETE FROM income WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete income: %w", err)
	}
	return requireAffected(res, billing.ErrIncomeNotFound)
}

const incomeColumns = "id, date, description, amount, payment_mode, bill_id, posting_kind"

func (qs queries) GetIncome(ctx context.Context, id billing.EntryID) (*billing.IncomeEntry, error) {
	row := qs.q.QueryRowContext(ctx, "SELECT "+incomeColumns+" FROM income WHERE id = ?", int64(id))
	e, err := scanIncome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrIncomeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (qs queries) ListIncome(ctx context.Context) ([]billing.IncomeEntry, error) {
	rows, err := qs.q.QueryContext(ctx, "SELECT "+incomeColumns+" FROM income ORDER BY date DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query income: %w", err)
	}
	defer rows.Close()

	var entries []billing.IncomeEntry
	for rows.Next() {
		e, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (qs queries) HasPosting(ctx context.Context, billID billing.BillID, kind billing.PostingKind) (bool, error) {
	var exists bool
	err := qs.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM income WHERE bill_id = ? AND posting_kind = ?)",
		int64(billID), string(kind),
	).Scan(&exists)
	return exists, err
}

func scanIncome(row rowScanner) (billing.IncomeEntry, error) {
	var (
		e           billing.IncomeEntry
		id          int64
		date        string
		description sql.NullString
		amount      sql.NullString
		mode        sql.NullString
		billID      sql.NullInt64
		kind        sql.NullString
	)
	if err := row.Scan(&id, &date, &description, &amount, &mode, &billID, &kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan income: %w", err)
	}
	e.ID = billing.EntryID(id)
	e.Date = parseDate(date)
	e.Description = description.String
	e.Amount = parseDecimal(amount.String)
	e.PaymentMode = billing.PaymentMode(mode.String)
	e.BillID = billing.BillID(billID.Int64)
	e.PostingKind = billing.PostingKind(kind.String)
	return e, nil
}

// ---- expenses ----

func (qs queries) InsertExpense(ctx context.Context, e *billing.ExpenseEntry) error {
	res, err := qs.q.ExecContext(ctx,
		"INSERT INTO expenses (date, description, amount, quantity) VALUES (?, ?, ?, ?)",
		e.Date.Format(billing.DateLayout), e.Description, e.Amount.String(), e.Quantity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read expense id: %w", err)
	}
	e.ID = billing.EntryID(id)
	return nil
}

func (qs queries) UpdateExpense(ctx context.Context, e billing.ExpenseEntry) error {
	res, err := qs.q.ExecContext(ctx,
		"UPDATE expenses SET date = ?, description = ?, amount = ?, quantity = ? WHERE id = ?",
		e.Date.Format(billing.DateLayout), e.Description, e.Amount.String(), e.Quantity, int64(e.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return requireAffected(res, billing.ErrExpenseNotFound)
}

func (qs queries) DeleteExpense(ctx context.Context, id billing.EntryID) error {
	res, err := qs.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireAffected(res, billing.ErrExpenseNotFound)
}

const expenseColumns = "id, date, description, amount, quantity"

func (qs queries) GetExpense(ctx context.Context, id billing.EntryID) (*billing.ExpenseEntry, error) {
	row := qs.q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", int64(id))
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrExpenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (qs queries) ListExpenses(ctx context.Context) ([]billing.ExpenseEntry, error) {
	rows, err := qs.q.QueryContext(ctx, "SELECT "+expenseColumns+" FROM expenses ORDER BY date DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var entries []billing.ExpenseEntry
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanExpense(row rowScanner) (billing.ExpenseEntry, error) {
	var (
		e           billing.ExpenseEntry
		id          int64
		date        string
		description sql.NullString
		amount      sql.NullString
		quantity    sql.NullInt64
	)
	if err := row.Scan(&id, &date, &description, &amount, &quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan expense: %w", err)
	}
	e.ID = billing.EntryID(id)
	e.Date = parseDate(date)
	e.Description = description.String
	e.Amount = parseDecimal(amount.String)
	e.Quantity = quantity.Int64
	if !quantity.Valid {
		e.Quantity = 1
	}
	return e, nil
}

// =============================================================================
// STORE (billing.Store interface)
// =============================================================================

func (s *Store) base() queries {
	return queries{q: s.db}
}

func (s *Store) InsertBill(ctx context.Context, b *billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().InsertBill(ctx, b)
}

func (s *Store) UpdateBill(ctx context.Context, b billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().UpdateBill(ctx, b)
}

func (s *Store) DeleteBill(ctx context.Context, id billing.BillID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().DeleteBill(ctx, id)
}

func (s *Store) GetBill(ctx context.Context, id billing.BillID) (*billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().GetBill(ctx, id)
}

func (s *Store) ListBills(ctx context.Context) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().ListBills(ctx)
}

func (s *Store) SearchBills(ctx context.Context, term string) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().SearchBills(ctx, term)
}

func (s *Store) PendingBills(ctx context.Context) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().PendingBills(ctx)
}

func (s *Store) SerialsWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().SerialsWithPrefix(ctx, prefix)
}

func (s *Store) InsertIncome(ctx context.Context, e *billing.IncomeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().InsertIncome(ctx, e)
}

func (s *Store) UpdateIncome(ctx context.Context, e billing.IncomeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().UpdateIncome(ctx, e)
}

func (s *Store) DeleteIncome(ctx context.Context, id billing.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().DeleteIncome(ctx, id)
}

func (s *Store) GetIncome(ctx context.Context, id billing.EntryID) (*billing.IncomeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().GetIncome(ctx, id)
}

func (s *Store) ListIncome(ctx context.Context) ([]billing.IncomeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().ListIncome(ctx)
}

func (s *Store) HasPosting(ctx context.Context, billID billing.BillID, kind billing.PostingKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().HasPosting(ctx, billID, kind)
}

func (s *Store) InsertExpense(ctx context.Context, e *billing.ExpenseEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().InsertExpense(ctx, e)
}

func (s *Store) UpdateExpense(ctx context.Context, e billing.ExpenseEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().UpdateExpense(ctx, e)
}

func (s *Store) DeleteExpense(ctx context.Context, id billing.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base().DeleteExpense(ctx, id)
}

func (s *Store) GetExpense(ctx context.Context, id billing.EntryID) (*billing.ExpenseEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().GetExpense(ctx, id)
}

func (s *Store) ListExpenses(ctx context.Context) ([]billing.ExpenseEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base().ListExpenses(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (billing.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The Store passed to fn
// reads and writes through the transaction; fn must not use s directly.
func (s *Store) WithTx(ctx context.Context, fn func(store billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapWriteError("commit", err)
	}
	return nil
}

// Reset deletes every bill, income and expense row and restarts ids.
// Schema and migration records are kept. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"income", "expenses", "bills"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sqlite_sequence WHERE name IN ('income', 'expenses', 'bills')")
	return err
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBillID(id billing.BillID) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) time.Time {
	if t, err := time.Parse(billing.DateLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// parseTimestamp also accepts SQLite's CURRENT_TIMESTAMP format, which
// older files used for created_at.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// mapWriteError turns uniqueness violations into billing sentinels.
func mapWriteError(op string, err error) error {
	if isUniqueConstraintError(err) {
		if strings.Contains(err.Error(), "bills.serial_number") {
			return billing.ErrDuplicateSerial
		}
		if strings.Contains(err.Error(), "income.bill_id") {
			return billing.ErrDuplicatePosting
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
