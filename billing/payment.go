/*
payment.go - Payment state machine

PURPOSE:
  Derives a bill's balance and decides whether an edit owes the income
  ledger a posting.

STATES:
  NOT_PAID -> PAID is the only edge with a side effect. There is no
  cancellation or refund state.

RULES (evaluated on every create and update):
  1. amount_due = unit_price * quantity - advance_amount
  2. PAID with amount_due > 0:   the due payment mode is required
  3. PAID with amount_due <= 0:  the due payment mode is cleared
  4. NOT_PAID:                   the due payment mode is cleared
  5. Final posting iff the persisted status was NOT_PAID, the new status
     is PAID, and the persisted amount_due was > 0. The posted amount is
     the persisted amount_due, not the recomputed one.

SEE ALSO:
  - ledger.go: Builds and appends the postings
  - engine.go: Applies the decision inside one transaction
*/
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is the resolved payment state of a bill draft.
type Settlement struct {
	AmountDue      decimal.Decimal
	DuePaymentMode PaymentMode
}

// Settle applies rules 1-4 to a draft.
func Settle(a Amounts, status PaymentStatus, dueMode string) (Settlement, error) {
	s := Settlement{AmountDue: a.Due(), DuePaymentMode: ModeUnspecified}
	if status != StatusPaid || !s.AmountDue.IsPositive() {
		return s, nil
	}
	mode, err := ValidatePaymentMode("amount_due_payment_mode", dueMode, false)
	if err != nil {
		return s, err
	}
	s.DuePaymentMode = mode
	return s, nil
}

// FinalPayment applies rule 5. It returns the amount to post and whether a
// posting is owed when prev is replaced by a bill in status next.
func FinalPayment(prev Bill, next PaymentStatus) (decimal.Decimal, bool) {
	if prev.PaymentStatus == StatusNotPaid && next == StatusPaid && prev.AmountDue.IsPositive() {
		return prev.AmountDue, true
	}
	return decimal.Zero, false
}

// AdvancePosting returns the income owed for a freshly created bill, if any.
func AdvancePosting(b Bill) (Posting, bool) {
	if !b.AdvanceAmount.IsPositive() {
		return Posting{}, false
	}
	return Posting{
		BillID:      b.ID,
		Kind:        PostingAdvance,
		Date:        b.OrderDate,
		Description: fmt.Sprintf("Advance from %s (SN: %s)", b.CustomerName, b.SerialNumber),
		Amount:      b.AdvanceAmount,
		Mode:        b.AdvancePaymentMode,
	}, true
}

// FinalPosting returns the income owed when prev is updated to next on day.
func FinalPosting(prev, next Bill, day time.Time) (Posting, bool) {
	amount, ok := FinalPayment(prev, next.PaymentStatus)
	if !ok {
		return Posting{}, false
	}
	return Posting{
		BillID:      prev.ID,
		Kind:        PostingFinal,
		Date:        day,
		Description: fmt.Sprintf("Final payment from %s (SN: %s)", next.CustomerName, next.SerialNumber),
		Amount:      amount,
		Mode:        next.AmountDuePaymentMode,
	}, true
}
