package billing

import "fmt"

// Violation is a stored bill that breaks a bill invariant.
type Violation struct {
	BillID       BillID
	SerialNumber string
	Rule         string
	Detail       string
}

const (
	RuleAmountDue      = "amount_due_mismatch"
	RuleAdvanceTotal   = "advance_exceeds_total"
	RuleQuantity       = "quantity_not_positive"
	RuleDueModeUnpaid  = "due_mode_while_unpaid"
	RuleUnknownAdvMode = "unknown_advance_mode"
)

// CheckBill returns every invariant b breaks. Rows written by the engine
// never break any; the check exists for databases edited by hand or
// upgraded from older files.
func CheckBill(b Bill) []Violation {
	var out []Violation
	add := func(rule, detail string) {
		out = append(out, Violation{BillID: b.ID, SerialNumber: b.SerialNumber, Rule: rule, Detail: detail})
	}

	if b.Quantity < 1 {
		add(RuleQuantity, fmt.Sprintf("quantity is %d", b.Quantity))
	}
	if b.AdvanceAmount.GreaterThan(b.Total()) {
		add(RuleAdvanceTotal, fmt.Sprintf("advance %s exceeds total %s", b.AdvanceAmount, b.Total()))
	}
	if want := b.ExpectedAmountDue(); !b.AmountDue.Equal(want) {
		add(RuleAmountDue, fmt.Sprintf("stored %s, expected %s", b.AmountDue, want))
	}
	if b.PaymentStatus != StatusPaid && b.AmountDuePaymentMode != ModeUnspecified {
		add(RuleDueModeUnpaid, fmt.Sprintf("due payment mode %s on an unpaid bill", b.AmountDuePaymentMode))
	}
	if !b.AdvancePaymentMode.IsKnown() {
		add(RuleUnknownAdvMode, fmt.Sprintf("advance payment mode %q", b.AdvancePaymentMode))
	}
	return out
}
