package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"golang.org/x/sync/errgroup"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(s string) time.Time {
	d, err := time.Parse(billing.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func testBill(serial, customer string) billing.Bill {
	return billing.Bill{
		SerialNumber:       serial,
		CustomerName:       customer,
		MobileNumber:       "9123456789",
		ProductSize:        "A4",
		Thickness:          "300gsm",
		CurrentStatus:      "Printing",
		Quantity:           3,
		OrderDate:          date("2025-03-14"),
		DeliveryDate:       date("2025-03-20"),
		UnitPrice:          decimal.RequireFromString("100.50"),
		AdvanceAmount:      decimal.RequireFromString("100"),
		AdvancePaymentMode: billing.ModeCash,
		AmountDue:          decimal.RequireFromString("201.50"),
		PaymentStatus:      billing.StatusNotPaid,
	}
}

func TestStore_BillRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: A bill with decimal amounts
	b := testBill("20250314001", "Asha Traders")

	// WHEN: Inserting and reading it back
	require.NoError(t, store.InsertBill(ctx, &b))
	got, err := store.GetBill(ctx, b.ID)

	// THEN: Every field survives, money exactly
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, "20250314001", got.SerialNumber)
	assert.Equal(t, "100.5", got.UnitPrice.String())
	assert.Equal(t, "201.5", got.AmountDue.String())
	assert.Equal(t, billing.ModeCash, got.AdvancePaymentMode)
	assert.Equal(t, billing.ModeUnspecified, got.AmountDuePaymentMode)
	assert.Equal(t, int64(3), got.Quantity)
	assert.Equal(t, "2025-03-20", got.DeliveryDate.Format(billing.DateLayout))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_UpdateAndDeleteBill(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	b := testBill("20250314001", "Asha Traders")
	require.NoError(t, store.InsertBill(ctx, &b))

	b.PaymentStatus = billing.StatusPaid
	b.AmountDuePaymentMode = billing.ModeUPI
	require.NoError(t, store.UpdateBill(ctx, b))

	got, err := store.GetBill(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, got.PaymentStatus)
	assert.Equal(t, billing.ModeUPI, got.AmountDuePaymentMode)

	require.NoError(t, store.DeleteBill(ctx, b.ID))
	assert.ErrorIs(t, store.DeleteBill(ctx, b.ID), billing.ErrBillNotFound)
	_, err = store.GetBill(ctx, b.ID)
	assert.ErrorIs(t, err, billing.ErrBillNotFound)

	missing := testBill("20250314009", "Nobody")
	missing.ID = 999
	assert.ErrorIs(t, store.UpdateBill(ctx, missing), billing.ErrBillNotFound)
}

func TestStore_DuplicateSerial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testBill("20250314001", "Asha Traders")
	require.NoError(t, store.InsertBill(ctx, &first))

	// WHEN: Inserting another bill with the same serial
	second := testBill("20250314001", "Lotus Prints")
	err := store.InsertBill(ctx, &second)

	// THEN: The unique index reports the billing sentinel
	assert.ErrorIs(t, err, billing.ErrDuplicateSerial)

	// And renaming onto a taken serial fails the same way
	third := testBill("20250314002", "Green Leaf")
	require.NoError(t, store.InsertBill(ctx, &third))
	third.SerialNumber = "20250314001"
	assert.ErrorIs(t, store.UpdateBill(ctx, third), billing.ErrDuplicateSerial)
}

func TestStore_SearchEscapesWildcards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, b := range []billing.Bill{
		testBill("20250314001", "100% Cotton"),
		testBill("20250314002", "Cotton_House"),
		testBill("20250314003", "CottonXHouse"),
	} {
		require.NoError(t, store.InsertBill(ctx, &b))
	}

	got, err := store.SearchBills(ctx, "%")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% Cotton", got[0].CustomerName)

	got, err = store.SearchBills(ctx, "n_H")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cotton_House", got[0].CustomerName)

	// Newest first
	got, err = store.SearchBills(ctx, "cotton")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "20250314003", got[0].SerialNumber)
}

func TestStore_SearchFoldsUnicodeCase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: A customer name outside ASCII
	b := testBill("20250314001", "Ärzte Çentre")
	b.MobileNumber = ""
	require.NoError(t, store.InsertBill(ctx, &b))

	// WHEN / THEN: Any casing of it matches, as in the memory store
	for _, term := range []string{"ärzte", "ÄRZTE", "çentre", "ÇENTRE"} {
		got, err := store.SearchBills(ctx, term)
		require.NoError(t, err, term)
		assert.Len(t, got, 1, term)
	}
}

func TestStore_PendingAndSerialPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paid := testBill("20250314001", "Asha Traders")
	paid.PaymentStatus = billing.StatusPaid
	paid.AmountDue = decimal.Zero
	pending := testBill("20250314002", "Lotus Prints")
	yesterday := testBill("20250313007", "Green Leaf")
	for _, b := range []*billing.Bill{&paid, &pending, &yesterday} {
		require.NoError(t, store.InsertBill(ctx, b))
	}

	bills, err := store.PendingBills(ctx)
	require.NoError(t, err)
	assert.Len(t, bills, 2)

	serials, err := store.SerialsWithPrefix(ctx, "20250314")
	require.NoError(t, err)
	assert.Equal(t, []string{"20250314001", "20250314002"}, serials)
}

func TestStore_IncomeAndPostings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	b := testBill("20250314001", "Asha Traders")
	require.NoError(t, store.InsertBill(ctx, &b))

	// GIVEN: One manual entry and one advance posting
	manual := billing.IncomeEntry{Date: date("2025-03-01"), Description: "Tip", Amount: decimal.NewFromInt(20)}
	advance := billing.IncomeEntry{
		Date:        date("2025-03-14"),
		Description: "Advance for Bill #20250314001",
		Amount:      decimal.NewFromInt(100),
		PaymentMode: billing.ModeCash,
		BillID:      b.ID,
		PostingKind: billing.PostingAdvance,
	}
	require.NoError(t, store.InsertIncome(ctx, &manual))
	require.NoError(t, store.InsertIncome(ctx, &advance))

	// THEN: The advance is recorded and a second one is refused
	ok, err := store.HasPosting(ctx, b.ID, billing.PostingAdvance)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.HasPosting(ctx, b.ID, billing.PostingFinal)
	require.NoError(t, err)
	assert.False(t, ok)

	dup := advance
	dup.ID = 0
	assert.ErrorIs(t, store.InsertIncome(ctx, &dup), billing.ErrDuplicatePosting)

	// And manual entries never collide on the partial index
	another := manual
	another.ID = 0
	require.NoError(t, store.InsertIncome(ctx, &another))

	entries, err := store.ListIncome(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, advance.ID, entries[0].ID)
	assert.Equal(t, billing.ModeUnspecified, entries[1].PaymentMode)

	// And a bill paid, reopened and paid again carries two final postings
	for _, amount := range []int64{200, 400} {
		final := billing.IncomeEntry{
			Date:        date("2025-03-14"),
			Description: "Final payment from Asha Traders (SN: 20250314001)",
			Amount:      decimal.NewFromInt(amount),
			PaymentMode: billing.ModeCard,
			BillID:      b.ID,
			PostingKind: billing.PostingFinal,
		}
		require.NoError(t, store.InsertIncome(ctx, &final))
	}
	ok, err = store.HasPosting(ctx, b.ID, billing.PostingFinal)
	require.NoError(t, err)
	assert.True(t, ok)

	// Update keeps the bill link
	advance.Amount = decimal.NewFromInt(150)
	require.NoError(t, store.UpdateIncome(ctx, advance))
	got, err := store.GetIncome(ctx, advance.ID)
	require.NoError(t, err)
	assert.Equal(t, "150", got.Amount.String())
	assert.Equal(t, b.ID, got.BillID)

	require.NoError(t, store.DeleteIncome(ctx, manual.ID))
	assert.ErrorIs(t, store.DeleteIncome(ctx, manual.ID), billing.ErrIncomeNotFound)
}

func TestStore_Expenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := billing.ExpenseEntry{Date: date("2025-03-02"), Description: "Ink", Amount: decimal.RequireFromString("45.25"), Quantity: 2}
	require.NoError(t, store.InsertExpense(ctx, &e))

	e.Quantity = 4
	require.NoError(t, store.UpdateExpense(ctx, e))
	got, err := store.GetExpense(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Quantity)
	assert.Equal(t, "45.25", got.Amount.String())

	require.NoError(t, store.DeleteExpense(ctx, e.ID))
	_, err = store.GetExpense(ctx, e.ID)
	assert.ErrorIs(t, err, billing.ErrExpenseNotFound)
	assert.ErrorIs(t, store.UpdateExpense(ctx, e), billing.ErrExpenseNotFound)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	// WHEN: A transaction writes a bill and then fails
	err := store.WithTx(ctx, func(s billing.Store) error {
		b := testBill("20250314001", "Asha Traders")
		if err := s.InsertBill(ctx, &b); err != nil {
			return err
		}
		return boom
	})

	// THEN: The error is returned and nothing was written
	assert.ErrorIs(t, err, boom)
	bills, err := store.ListBills(ctx)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestStore_ConcurrentCreatesGetDistinctSerials(t *testing.T) {
	// GIVEN: A file database so connections share state like production
	store, err := New(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	defer store.Close()

	now := func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	engine := billing.NewEngine(store, billing.WithClock(now), billing.WithLogger(zerolog.Nop()))

	// WHEN: Creating bills concurrently
	const n = 12
	serials := make([]string, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			b, err := engine.CreateBill(ctx, billing.BillInput{
				CustomerName:       "Walk-in",
				OrderDate:          "2025-03-14",
				DeliveryDate:       "2025-03-15",
				CurrentStatus:      "Pending",
				ProductSize:        "A5",
				Thickness:          "170gsm",
				UnitPrice:          "50",
				AdvanceAmount:      "10",
				AdvancePaymentMode: "CASH",
				PaymentStatus:      "NOT_PAID",
			})
			if err != nil {
				return err
			}
			serials[i] = b.SerialNumber
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// THEN: Every serial is distinct and the counter is dense
	seen := make(map[string]bool)
	for _, sn := range serials {
		assert.False(t, seen[sn], "duplicate serial %s", sn)
		seen[sn] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[billing.FormatSerial(now(), i)], "missing counter %d", i)
	}

	// And each bill has exactly one advance posting
	income, err := store.ListIncome(context.Background())
	require.NoError(t, err)
	assert.Len(t, income, n)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := testBill("20250314001", "Asha Traders")
	require.NoError(t, store.InsertBill(ctx, &b))
	e := billing.ExpenseEntry{Date: date("2025-03-02"), Description: "Ink", Amount: decimal.NewFromInt(5), Quantity: 1}
	require.NoError(t, store.InsertExpense(ctx, &e))

	require.NoError(t, store.Reset(ctx))

	bills, err := store.ListBills(ctx)
	require.NoError(t, err)
	assert.Empty(t, bills)
	expenses, err := store.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Empty(t, expenses)

	// Ids restart from one
	again := testBill("20250314001", "Asha Traders")
	require.NoError(t, store.InsertBill(ctx, &again))
	assert.Equal(t, billing.BillID(1), again.ID)
}

func TestStore_Ping(t *testing.T) {
	store := newTestStore(t)

	assert.NoError(t, store.Ping(context.Background()))
}
