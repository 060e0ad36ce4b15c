/*
engine.go - Bill lifecycle operations

PURPOSE:
  The Engine is the single entry point for every operation on bills and
  the ledger. It validates input, then runs each mutation inside one
  store transaction:

    create: validate -> allocate serial -> insert bill -> post advance
    update: validate -> load previous -> write bill -> post final payment

  A failure anywhere after the transaction begins rolls back the bill
  write and any ledger write together.

SERIAL ALLOCATION:
  The allocator reads today's serials and inserts the next one inside the
  same transaction. TxStore serializes transactions, so inside one process
  two creates cannot read the same maximum. If the insert still reports
  ErrDuplicateSerial (another process writing the same file), the whole
  transaction is retried with a freshly computed counter.

LIFECYCLE:
  The engine holds no global state. Open the store, hand it to NewEngine,
  close the store when done.

    store, _ := sqlite.New("billing_data.db")
    defer store.Close()
    engine := billing.NewEngine(store)

SEE ALSO:
  - payment.go: Balance and posting rules
  - serial.go: Serial number format
  - store.go: Persistence interfaces
*/
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Engine runs bill and ledger operations against a TxStore.
type Engine struct {
	store  TxStore
	poster *Poster
	now    func() time.Time
	log    zerolog.Logger

	statsGroup singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock. The clock decides the serial
// prefix and the date of final-payment postings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger overrides the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// NewEngine creates an Engine over store.
func NewEngine(store TxStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		log:   log.Logger.With().Str("component", "billing").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.poster = NewPoster(e.log)
	return e
}

// today is the engine clock truncated to a calendar date.
func (e *Engine) today() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// BILLS
// =============================================================================

// CreateBill validates in, assigns the next serial number for today and
// stores the bill. A positive advance is posted to the income ledger in
// the same transaction.
func (e *Engine) CreateBill(ctx context.Context, in BillInput) (*Bill, error) {
	draft, err := ParseBill(in, false)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		bill := draft
		err := e.store.WithTx(ctx, func(s Store) error {
			return e.insertWithSerial(ctx, s, &bill)
		})
		if err == nil {
			e.log.Info().
				Int64("bill_id", int64(bill.ID)).
				Str("serial_number", bill.SerialNumber).
				Str("amount_due", bill.AmountDue.String()).
				Msg("bill created")
			return &bill, nil
		}
		if errors.Is(err, ErrDuplicateSerial) && attempt < MaxAllocationAttempts {
			e.log.Warn().
				Int("attempt", attempt).
				Str("serial_number", bill.SerialNumber).
				Msg("serial number taken at commit, retrying allocation")
			continue
		}
		return nil, internal("create bill", err)
	}
}

func (e *Engine) insertWithSerial(ctx context.Context, s Store, bill *Bill) error {
	day := e.now()
	existing, err := s.SerialsWithPrefix(ctx, SerialPrefix(day))
	if err != nil {
		return err
	}
	serial, skipped := NextSerial(day, existing)
	for _, sn := range skipped {
		e.log.Warn().Str("serial_number", sn).Msg("ignoring non-numeric serial during allocation")
	}

	bill.SerialNumber = serial
	if err := s.InsertBill(ctx, bill); err != nil {
		return err
	}
	if posting, ok := AdvancePosting(*bill); ok {
		if _, err := e.poster.PostIncome(ctx, s, posting); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBill replaces the bill with id by in, recomputing its balance. If
// the bill moves from NOT_PAID to PAID with a positive persisted balance,
// that balance is posted to the income ledger in the same transaction.
func (e *Engine) UpdateBill(ctx context.Context, id BillID, in BillInput) (*Bill, error) {
	next, err := ParseBill(in, true)
	if err != nil {
		return nil, err
	}

	var posted bool
	err = e.store.WithTx(ctx, func(s Store) error {
		prev, err := s.GetBill(ctx, id)
		if err != nil {
			return err
		}
		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
		if err := s.UpdateBill(ctx, next); err != nil {
			return err
		}
		if posting, ok := FinalPosting(*prev, next, e.today()); ok {
			posted, err = e.poster.PostIncome(ctx, s, posting)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internal("update bill", err)
	}

	e.log.Info().
		Int64("bill_id", int64(next.ID)).
		Str("serial_number", next.SerialNumber).
		Str("payment_status", string(next.PaymentStatus)).
		Bool("final_payment_posted", posted).
		Msg("bill updated")
	return &next, nil
}

// DeleteBill hard-deletes a bill. Income already posted for it stays.
func (e *Engine) DeleteBill(ctx context.Context, id BillID) error {
	if err := e.store.DeleteBill(ctx, id); err != nil {
		return internal("delete bill", err)
	}
	e.log.Info().Int64("bill_id", int64(id)).Msg("bill deleted")
	return nil
}

// GetBill returns one bill.
func (e *Engine) GetBill(ctx context.Context, id BillID) (*Bill, error) {
	b, err := e.store.GetBill(ctx, id)
	if err != nil {
		return nil, internal("get bill", err)
	}
	return b, nil
}

// ListBills returns every bill, most recent first.
func (e *Engine) ListBills(ctx context.Context) ([]Bill, error) {
	bills, err := e.store.ListBills(ctx)
	return bills, internal("list bills", err)
}

// SearchBills returns the bills matching term. An empty term lists all.
func (e *Engine) SearchBills(ctx context.Context, term string) ([]Bill, error) {
	if term == "" {
		return e.ListBills(ctx)
	}
	bills, err := e.store.SearchBills(ctx, term)
	return bills, internal("search bills", err)
}

// =============================================================================
// INCOME - User-entered rows bypass the poster
// =============================================================================

// CreateIncome stores a user-entered income entry.
func (e *Engine) CreateIncome(ctx context.Context, in IncomeInput) (*IncomeEntry, error) {
	entry, err := ParseIncome(in)
	if err != nil {
		return nil, err
	}
	if err := e.store.InsertIncome(ctx, &entry); err != nil {
		return nil, internal("create income", err)
	}
	return &entry, nil
}

// UpdateIncome edits an income entry. A bill link, if any, is kept.
func (e *Engine) UpdateIncome(ctx context.Context, id EntryID, in IncomeInput) (*IncomeEntry, error) {
	entry, err := ParseIncome(in)
	if err != nil {
		return nil, err
	}
	entry.ID = id
	if err := e.store.UpdateIncome(ctx, entry); err != nil {
		return nil, internal("update income", err)
	}
	return &entry, nil
}

// DeleteIncome removes an income entry.
func (e *Engine) DeleteIncome(ctx context.Context, id EntryID) error {
	return internal("delete income", e.store.DeleteIncome(ctx, id))
}

// ListIncome returns every income entry, newest first.
func (e *Engine) ListIncome(ctx context.Context) ([]IncomeEntry, error) {
	entries, err := e.store.ListIncome(ctx)
	return entries, internal("list income", err)
}

// IncomeSummary totals income per payment mode.
func (e *Engine) IncomeSummary(ctx context.Context) ([]ModeTotal, error) {
	entries, err := e.store.ListIncome(ctx)
	if err != nil {
		return nil, internal("income summary", err)
	}
	return SummarizeIncome(entries), nil
}

// =============================================================================
// EXPENSES
// =============================================================================

// CreateExpense stores an expense.
func (e *Engine) CreateExpense(ctx context.Context, in ExpenseInput) (*ExpenseEntry, error) {
	entry, err := ParseExpense(in)
	if err != nil {
		return nil, err
	}
	if err := e.store.InsertExpense(ctx, &entry); err != nil {
		return nil, internal("create expense", err)
	}
	return &entry, nil
}

// UpdateExpense edits an expense.
func (e *Engine) UpdateExpense(ctx context.Context, id EntryID, in ExpenseInput) (*ExpenseEntry, error) {
	entry, err := ParseExpense(in)
	if err != nil {
		return nil, err
	}
	entry.ID = id
	if err := e.store.UpdateExpense(ctx, entry); err != nil {
		return nil, internal("update expense", err)
	}
	return &entry, nil
}

// DeleteExpense removes an expense.
func (e *Engine) DeleteExpense(ctx context.Context, id EntryID) error {
	return internal("delete expense", e.store.DeleteExpense(ctx, id))
}

// ListExpenses returns every expense, newest first.
func (e *Engine) ListExpenses(ctx context.Context) ([]ExpenseEntry, error) {
	entries, err := e.store.ListExpenses(ctx)
	return entries, internal("list expenses", err)
}

// =============================================================================
// REPORTING
// =============================================================================

// Stats returns the dashboard aggregate. Concurrent callers share one
// computation; the returned value must not be modified.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := e.statsGroup.DoChan("stats", func() (interface{}, error) {
		return e.buildStats(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Stats), nil
	}
}

func (e *Engine) buildStats(ctx context.Context) (*Stats, error) {
	income, err := e.store.ListIncome(ctx)
	if err != nil {
		return nil, internal("stats income", err)
	}
	expenses, err := e.store.ListExpenses(ctx)
	if err != nil {
		return nil, internal("stats expenses", err)
	}
	pending, err := e.store.PendingBills(ctx)
	if err != nil {
		return nil, internal("stats pending", err)
	}
	stats := BuildStats(e.now(), income, expenses, pending)
	return &stats, nil
}

// CheckIntegrity scans every bill for broken invariants.
func (e *Engine) CheckIntegrity(ctx context.Context) ([]Violation, error) {
	bills, err := e.store.ListBills(ctx)
	if err != nil {
		return nil, internal("integrity check", err)
	}
	var violations []Violation
	for _, b := range bills {
		violations = append(violations, CheckBill(b)...)
	}
	return violations, nil
}
