package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/billing/store"
)

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*billing.Engine, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	return billing.NewEngine(mem,
		billing.WithClock(func() time.Time { return fixedNow }),
		billing.WithLogger(zerolog.Nop()),
	), mem
}

func workedInput() billing.BillInput {
	return billing.BillInput{
		CustomerName:       "Asha Traders",
		MobileNumber:       "9123456789",
		OrderDate:          "2025-03-10",
		DeliveryDate:       "2025-03-20",
		CurrentStatus:      "Printing",
		ProductSize:        "A4",
		Thickness:          "300gsm",
		UnitPrice:          "100",
		Quantity:           "3",
		AdvanceAmount:      "100",
		AdvancePaymentMode: "CASH",
		PaymentStatus:      "NOT_PAID",
	}
}

func paidInput(serial, mode string) billing.BillInput {
	in := workedInput()
	in.SerialNumber = serial
	in.PaymentStatus = "PAID"
	in.AmountDuePaymentMode = mode
	return in
}

func postingsOf(t *testing.T, e *billing.Engine, kind billing.PostingKind) []billing.IncomeEntry {
	t.Helper()
	entries, err := e.ListIncome(context.Background())
	require.NoError(t, err)
	var out []billing.IncomeEntry
	for _, entry := range entries {
		if entry.PostingKind == kind {
			out = append(out, entry)
		}
	}
	return out
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateBill_WorkedExample(t *testing.T) {
	// GIVEN: 3 units at 100 with 100 paid in cash
	engine, _ := newEngine(t)
	ctx := context.Background()

	// WHEN: Creating the bill
	bill, err := engine.CreateBill(ctx, workedInput())

	// THEN: 200 is due and the advance is posted, dated to the order date
	require.NoError(t, err)
	assert.Equal(t, "20250314001", bill.SerialNumber)
	assert.Equal(t, "200", bill.AmountDue.String())
	assert.Equal(t, billing.StatusNotPaid, bill.PaymentStatus)

	advances := postingsOf(t, engine, billing.PostingAdvance)
	require.Len(t, advances, 1)
	assert.Equal(t, "100", advances[0].Amount.String())
	assert.Equal(t, billing.ModeCash, advances[0].PaymentMode)
	assert.Equal(t, bill.ID, advances[0].BillID)
	assert.Equal(t, "2025-03-10", advances[0].Date.Format(billing.DateLayout))
}

func TestCreateBill_ZeroAdvancePostsNothing(t *testing.T) {
	engine, _ := newEngine(t)
	in := workedInput()
	in.AdvanceAmount = ""

	bill, err := engine.CreateBill(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, "300", bill.AmountDue.String())
	assert.Empty(t, postingsOf(t, engine, billing.PostingAdvance))
}

func TestCreateBill_ValidationWritesNothing(t *testing.T) {
	engine, _ := newEngine(t)
	in := workedInput()
	in.MobileNumber = "0123456789"

	_, err := engine.CreateBill(context.Background(), in)

	assert.Equal(t, billing.KindValidation, billing.Kind(err))
	bills, err := engine.ListBills(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestCreateBill_RollsBackWhenPostingFails(t *testing.T) {
	// GIVEN: A store whose income writes fail
	engine, mem := newEngine(t)
	mem.FailIncomeWrites(errors.New("disk full"))

	// WHEN: Creating a bill with an advance
	_, err := engine.CreateBill(context.Background(), workedInput())

	// THEN: The error is internal and the bill was not kept
	require.Error(t, err)
	assert.Equal(t, billing.KindInternal, billing.Kind(err))
	bills, listErr := engine.ListBills(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, bills)

	// And the serial is free for the next create
	mem.FailIncomeWrites(nil)
	bill, err := engine.CreateBill(context.Background(), workedInput())
	require.NoError(t, err)
	assert.Equal(t, "20250314001", bill.SerialNumber)
}

func TestCreateBill_ConcurrentCreatesGetDistinctSerials(t *testing.T) {
	engine, _ := newEngine(t)
	const n = 20

	var wg sync.WaitGroup
	serials := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bill, err := engine.CreateBill(context.Background(), workedInput())
			if err != nil {
				t.Errorf("create failed: %v", err)
				return
			}
			serials <- bill.SerialNumber
		}()
	}
	wg.Wait()
	close(serials)

	seen := make(map[string]bool)
	for sn := range serials {
		assert.False(t, seen[sn], "serial %s issued twice", sn)
		seen[sn] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["20250314020"])
}

func TestCreateBill_SkipsNonNumericSerials(t *testing.T) {
	// GIVEN: A bill renamed to a non-numeric serial with today's prefix
	engine, _ := newEngine(t)
	ctx := context.Background()
	first, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)
	renamed := workedInput()
	renamed.SerialNumber = "20250314-VIP"
	_, err = engine.UpdateBill(ctx, first.ID, renamed)
	require.NoError(t, err)

	// WHEN: Creating another bill
	next, err := engine.CreateBill(ctx, workedInput())

	// THEN: The renamed serial is ignored by allocation
	require.NoError(t, err)
	assert.Equal(t, "20250314001", next.SerialNumber)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateBill_PaidPostsFinalPaymentExactlyOnce(t *testing.T) {
	// GIVEN: The worked example bill
	engine, _ := newEngine(t)
	ctx := context.Background()
	bill, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)

	// WHEN: Marking it PAID by UPI
	updated, err := engine.UpdateBill(ctx, bill.ID, paidInput(bill.SerialNumber, "UPI"))

	// THEN: The stored balance stays 200 and one final posting of 200 by
	// UPI is dated today
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, updated.PaymentStatus)
	assert.Equal(t, "200", updated.AmountDue.String())
	stored, err := engine.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "200", stored.AmountDue.String())
	assert.Equal(t, billing.ModeUPI, updated.AmountDuePaymentMode)
	finals := postingsOf(t, engine, billing.PostingFinal)
	require.Len(t, finals, 1)
	assert.Equal(t, "200", finals[0].Amount.String())
	assert.Equal(t, billing.ModeUPI, finals[0].PaymentMode)
	assert.Equal(t, "2025-03-14", finals[0].Date.Format(billing.DateLayout))

	// WHEN: Saving the PAID bill again
	_, err = engine.UpdateBill(ctx, bill.ID, paidInput(bill.SerialNumber, "UPI"))
	require.NoError(t, err)

	// THEN: No second posting
	assert.Len(t, postingsOf(t, engine, billing.PostingFinal), 1)
}

func TestUpdateBill_ReopenAndPayAgainPostsEachPayment(t *testing.T) {
	// GIVEN: The worked example bill, paid by UPI
	engine, _ := newEngine(t)
	ctx := context.Background()
	bill, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)
	_, err = engine.UpdateBill(ctx, bill.ID, paidInput(bill.SerialNumber, "UPI"))
	require.NoError(t, err)

	// WHEN: Reopening it with quantity 5 (400 due) and paying by card
	reopened := workedInput()
	reopened.SerialNumber = bill.SerialNumber
	reopened.Quantity = "5"
	stored, err := engine.UpdateBill(ctx, bill.ID, reopened)
	require.NoError(t, err)
	require.Equal(t, "400", stored.AmountDue.String())

	repaid := paidInput(bill.SerialNumber, "CARD")
	repaid.Quantity = "5"
	_, err = engine.UpdateBill(ctx, bill.ID, repaid)
	require.NoError(t, err)

	// THEN: Both payments are in the ledger, the advance only once
	finals := postingsOf(t, engine, billing.PostingFinal)
	require.Len(t, finals, 2)
	byMode := map[billing.PaymentMode]string{}
	for _, f := range finals {
		byMode[f.PaymentMode] = f.Amount.String()
	}
	assert.Equal(t, map[billing.PaymentMode]string{billing.ModeUPI: "200", billing.ModeCard: "400"}, byMode)
	assert.Len(t, postingsOf(t, engine, billing.PostingAdvance), 1)
}

func TestUpdateBill_NothingDueMeansNoPosting(t *testing.T) {
	// GIVEN: A bill fully paid by its advance
	engine, _ := newEngine(t)
	ctx := context.Background()
	in := workedInput()
	in.AdvanceAmount = "300"
	bill, err := engine.CreateBill(ctx, in)
	require.NoError(t, err)

	// WHEN: Marking it PAID with a mode
	paid := in
	paid.SerialNumber = bill.SerialNumber
	paid.PaymentStatus = "PAID"
	paid.AmountDuePaymentMode = "CARD"
	updated, err := engine.UpdateBill(ctx, bill.ID, paid)

	// THEN: The mode is cleared and nothing is posted
	require.NoError(t, err)
	assert.Equal(t, billing.ModeUnspecified, updated.AmountDuePaymentMode)
	assert.Empty(t, postingsOf(t, engine, billing.PostingFinal))
}

func TestUpdateBill_PostsPersistedBalanceWhenEditClearsIt(t *testing.T) {
	// GIVEN: A bill owing 200
	engine, _ := newEngine(t)
	ctx := context.Background()
	bill, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)

	// WHEN: In the same edit the advance is raised to cover the total and
	// the bill is marked PAID without a due mode
	edit := workedInput()
	edit.SerialNumber = bill.SerialNumber
	edit.AdvanceAmount = "300"
	edit.PaymentStatus = "PAID"
	_, err = engine.UpdateBill(ctx, bill.ID, edit)
	require.NoError(t, err)

	// THEN: The stored 200 is posted without a payment mode
	finals := postingsOf(t, engine, billing.PostingFinal)
	require.Len(t, finals, 1)
	assert.Equal(t, "200", finals[0].Amount.String())
	assert.Equal(t, billing.ModeUnspecified, finals[0].PaymentMode)
}

func TestUpdateBill_RollsBackWhenPostingFails(t *testing.T) {
	engine, mem := newEngine(t)
	ctx := context.Background()
	bill, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)

	mem.FailIncomeWrites(errors.New("disk full"))
	_, err = engine.UpdateBill(ctx, bill.ID, paidInput(bill.SerialNumber, "UPI"))
	require.Error(t, err)
	mem.FailIncomeWrites(nil)

	stored, err := engine.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusNotPaid, stored.PaymentStatus)
	assert.Equal(t, "200", stored.AmountDue.String())
}

func TestUpdateBill_DuplicateSerialIsConflict(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()
	first, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)
	second, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)

	in := workedInput()
	in.SerialNumber = first.SerialNumber
	_, err = engine.UpdateBill(ctx, second.ID, in)

	assert.True(t, errors.Is(err, billing.ErrDuplicateSerial))
	assert.Equal(t, billing.KindConflict, billing.Kind(err))
}

func TestUpdateBill_NotFound(t *testing.T) {
	engine, _ := newEngine(t)
	in := workedInput()
	in.SerialNumber = "20250314001"

	_, err := engine.UpdateBill(context.Background(), 42, in)

	assert.True(t, errors.Is(err, billing.ErrBillNotFound))
}

// =============================================================================
// DELETE, SEARCH, LEDGER
// =============================================================================

func TestDeleteBill_TwiceIsNotFound(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()
	bill, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)

	require.NoError(t, engine.DeleteBill(ctx, bill.ID))
	err = engine.DeleteBill(ctx, bill.ID)

	assert.Equal(t, billing.KindNotFound, billing.Kind(err))
	// The advance stays in the ledger
	assert.Len(t, postingsOf(t, engine, billing.PostingAdvance), 1)
}

func TestSearchBills(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()
	_, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)
	other := workedInput()
	other.CustomerName = "Ravi Prints"
	_, err = engine.CreateBill(ctx, other)
	require.NoError(t, err)

	all, err := engine.SearchBills(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := engine.SearchBills(ctx, "RAVI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Ravi Prints", found[0].CustomerName)
}

func TestIncomeAndExpenseCRUD(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	entry, err := engine.CreateIncome(ctx, billing.IncomeInput{Date: "2025-03-01", Description: "Tip", Amount: "20"})
	require.NoError(t, err)
	_, err = engine.UpdateIncome(ctx, entry.ID, billing.IncomeInput{Date: "2025-03-01", Description: "Tip", Amount: "25", PaymentMode: "UPI"})
	require.NoError(t, err)

	summary, err := engine.IncomeSummary(ctx)
	require.NoError(t, err)
	for _, m := range summary {
		if m.Mode == "UPI" {
			assert.Equal(t, "25", m.Total.String())
		}
	}

	require.NoError(t, engine.DeleteIncome(ctx, entry.ID))
	assert.True(t, billing.IsNotFound(engine.DeleteIncome(ctx, entry.ID)))

	exp, err := engine.CreateExpense(ctx, billing.ExpenseInput{Date: "2025-03-01", Description: "Ink", Amount: "40", Quantity: "2"})
	require.NoError(t, err)
	_, err = engine.UpdateExpense(ctx, 999, billing.ExpenseInput{Date: "2025-03-01", Description: "Ink", Amount: "40"})
	assert.True(t, billing.IsNotFound(err))

	expenses, err := engine.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, exp.ID, expenses[0].ID)
	assert.Equal(t, int64(2), expenses[0].Quantity)
}

func TestStats(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()
	_, err := engine.CreateBill(ctx, workedInput())
	require.NoError(t, err)
	_, err = engine.CreateExpense(ctx, billing.ExpenseInput{Date: "2025-02-01", Description: "Rent", Amount: "30"})
	require.NoError(t, err)

	stats, err := engine.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, "100", stats.TotalIncome.String())
	assert.Equal(t, "30", stats.TotalExpenses.String())
	assert.Equal(t, "70", stats.NetProfit.String())
	assert.Equal(t, "200", stats.PendingPayments.String())
}

func TestStats_CancelledContext(t *testing.T) {
	engine, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Stats(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
