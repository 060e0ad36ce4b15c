/*
Package billing provides the bill lifecycle and ledger consistency engine.

PURPOSE:
  This package owns everything that has real invariants in the billing
  system: serial-number allocation, amount-due computation, the payment
  state machine, and the income postings derived from bill events. The
  transport (api/) and persistence (store/sqlite, billing/store) packages
  are plumbing around it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Bill: one customer order with pricing, payment and delivery attributes
  - IncomeEntry: money received, user-entered or posted from a bill event
  - ExpenseEntry: non-revenue outflow
  - PaymentMode / PaymentStatus: closed enums

DESIGN PRINCIPLES:
  1. Precision: all money uses decimal.Decimal
  2. Derivation: AmountDue is always recomputed from its inputs
  3. Atomicity: a bill write and its ledger posting commit together

SEE ALSO:
  - engine.go: Operations over bills and the ledger
  - payment.go: Payment state machine
  - serial.go: Serial number allocator
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// IDENTIFIERS
// =============================================================================

// BillID is the store-assigned, immutable, monotonic bill identity.
type BillID int64

// EntryID identifies an income or expense row.
type EntryID int64

// =============================================================================
// ENUMS
// =============================================================================

// PaymentMode is how money changed hands.
type PaymentMode string

const (
	ModeCash    PaymentMode = "CASH"
	ModeAccount PaymentMode = "ACCOUNT"
	ModeUPI     PaymentMode = "UPI"
	ModeCard    PaymentMode = "CARD"

	// ModeUnspecified is stored as NULL.
	ModeUnspecified PaymentMode = ""
)

// UnspecifiedLabel is the summary bucket for income without a mode.
const UnspecifiedLabel = "Unspecified"

// PaymentModes is the fixed list of allowed modes, in display order.
var PaymentModes = []PaymentMode{ModeCash, ModeAccount, ModeUPI, ModeCard}

// Label returns the display name, mapping the empty mode to "Unspecified".
func (m PaymentMode) Label() string {
	if m == ModeUnspecified {
		return UnspecifiedLabel
	}
	return string(m)
}

// IsKnown reports whether m is one of PaymentModes.
func (m PaymentMode) IsKnown() bool {
	for _, known := range PaymentModes {
		if m == known {
			return true
		}
	}
	return false
}

// PaymentStatus is the state of a bill's balance.
type PaymentStatus string

const (
	StatusNotPaid PaymentStatus = "NOT_PAID"
	StatusPaid    PaymentStatus = "PAID"
)

// PostingKind tags an income entry derived from a bill event.
type PostingKind string

const (
	// PostingNone marks user-entered income.
	PostingNone    PostingKind = ""
	PostingAdvance PostingKind = "advance"
	PostingFinal   PostingKind = "final"
)

// OncePerBill reports whether a bill may carry at most one posting of k.
func (k PostingKind) OncePerBill() bool {
	return k == PostingAdvance
}

// =============================================================================
// BILL
// =============================================================================

// Bill is one manufacturing/sales order.
type Bill struct {
	ID           BillID
	SerialNumber string

	CustomerName  string
	MobileNumber  string
	ProductSize   string
	Thickness     string
	CurrentStatus string
	Quantity      int64

	OrderDate    time.Time
	DeliveryDate time.Time
	CreatedAt    time.Time

	UnitPrice            decimal.Decimal
	AdvanceAmount        decimal.Decimal
	AdvancePaymentMode   PaymentMode
	AmountDue            decimal.Decimal
	PaymentStatus        PaymentStatus
	AmountDuePaymentMode PaymentMode
}

// Total is unit price times quantity.
func (b Bill) Total() decimal.Decimal {
	return b.UnitPrice.Mul(decimal.NewFromInt(b.Quantity))
}

// ExpectedAmountDue recomputes the balance from its inputs.
func (b Bill) ExpectedAmountDue() decimal.Decimal {
	return b.Total().Sub(b.AdvanceAmount)
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// IncomeEntry is a record of money received.
type IncomeEntry struct {
	ID          EntryID
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	PaymentMode PaymentMode

	// BillID and PostingKind are set only for entries posted from a bill
	// event. A zero BillID means the entry was entered directly.
	BillID      BillID
	PostingKind PostingKind
}

// ExpenseEntry is a non-revenue outflow.
type ExpenseEntry struct {
	ID          EntryID
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Quantity    int64
}

// =============================================================================
// INPUTS - raw field values as received from a client
// =============================================================================

// BillInput carries unparsed bill fields. Numbers stay strings so the
// validation layer can report which field failed to parse.
type BillInput struct {
	SerialNumber         string
	CustomerName         string
	MobileNumber         string
	OrderDate            string
	DeliveryDate         string
	CurrentStatus        string
	ProductSize          string
	Thickness            string
	UnitPrice            string
	AdvanceAmount        string
	Quantity             string
	AdvancePaymentMode   string
	PaymentStatus        string
	AmountDuePaymentMode string
}

func (in BillInput) fields() map[string]string {
	return map[string]string{
		"serial_number":        in.SerialNumber,
		"customer_name":        in.CustomerName,
		"order_date":           in.OrderDate,
		"delivery_date":        in.DeliveryDate,
		"current_status":       in.CurrentStatus,
		"product_size":         in.ProductSize,
		"thickness":            in.Thickness,
		"unit_price":           in.UnitPrice,
		"advance_payment_mode": in.AdvancePaymentMode,
		"payment_status":       in.PaymentStatus,
	}
}

// IncomeInput carries unparsed income fields.
type IncomeInput struct {
	Date        string
	Description string
	Amount      string
	PaymentMode string
}

// ExpenseInput carries unparsed expense fields.
type ExpenseInput struct {
	Date        string
	Description string
	Amount      string
	Quantity    string
}
