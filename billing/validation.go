package billing

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field validation. Every function here is pure; failures are
// *ValidationError values whose Reason is shown to the user as-is.

var mobilePattern = regexp.MustCompile(`^[1-9][0-9]{9}$`)

// requiredBillFields is the create-path presence list, in report order.
var requiredBillFields = []string{
	"customer_name", "order_date", "delivery_date", "current_status",
	"unit_price", "advance_payment_mode", "payment_status",
	"product_size", "thickness",
}

// ValidateMobile accepts an empty value; anything else must be exactly
// 10 digits not starting with 0.
func ValidateMobile(value string) error {
	if value == "" {
		return nil
	}
	if !mobilePattern.MatchString(value) {
		return invalid("mobile_number", "Mobile number must be exactly 10 digits and cannot start with 0.")
	}
	return nil
}

// ValidatePaymentMode checks value against PaymentModes. When allowEmpty is
// set an empty value is accepted and returned as ModeUnspecified.
func ValidatePaymentMode(field, value string, allowEmpty bool) (PaymentMode, error) {
	mode := PaymentMode(strings.ToUpper(strings.TrimSpace(value)))
	if mode == ModeUnspecified {
		if allowEmpty {
			return ModeUnspecified, nil
		}
		return ModeUnspecified, invalid(field, "Payment mode is required.")
	}
	if !mode.IsKnown() {
		allowed := make([]string, len(PaymentModes))
		for i, m := range PaymentModes {
			allowed[i] = string(m)
		}
		return ModeUnspecified, invalid(field, "Invalid Payment Mode. Allowed: "+strings.Join(allowed, ", "))
	}
	return mode, nil
}

// Amounts are the parsed monetary inputs of a bill.
type Amounts struct {
	UnitPrice decimal.Decimal
	Advance   decimal.Decimal
	Quantity  int64
}

// Total is unit price times quantity.
func (a Amounts) Total() decimal.Decimal {
	return a.UnitPrice.Mul(decimal.NewFromInt(a.Quantity))
}

// Due is the balance left after the advance.
func (a Amounts) Due() decimal.Decimal {
	return a.Total().Sub(a.Advance)
}

// ValidateAmounts parses and range-checks the monetary inputs. An empty
// advance means 0 and an empty quantity means 1. The first violated rule is
// returned.
func ValidateAmounts(unitPrice, advanceAmount, quantity string) (Amounts, error) {
	var a Amounts

	price, err := parseDecimal("unit_price", unitPrice, "")
	if err != nil {
		return a, err
	}
	advance, err := parseDecimal("advance_amount", advanceAmount, "0")
	if err != nil {
		return a, err
	}
	qty, err := parseQuantity(quantity)
	if err != nil {
		return a, err
	}

	if price.IsNegative() {
		return a, invalid("unit_price", "Total price cannot be negative.")
	}
	if advance.IsNegative() {
		return a, invalid("advance_amount", "Advance amount cannot be negative.")
	}
	if qty < 1 {
		return a, invalid("quantity", "Quantity must be a positive integer.")
	}

	a = Amounts{UnitPrice: price, Advance: advance, Quantity: qty}
	if a.Advance.GreaterThan(a.Total()) {
		return Amounts{}, invalid("advance_amount", "Advance amount cannot be greater than total cost (Price * Quantity).")
	}
	return a, nil
}

// ValidateAmount parses a free-standing ledger amount. Sign is not checked.
func ValidateAmount(field, value string) (decimal.Decimal, error) {
	return parseDecimal(field, value, "")
}

// ValidateQuantity parses an expense quantity; empty means 1.
func ValidateQuantity(value string) (int64, error) {
	qty, err := parseQuantity(value)
	if err != nil {
		return 0, err
	}
	if qty < 1 {
		return 0, invalid("quantity", "Quantity must be a positive integer.")
	}
	return qty, nil
}

func parseDecimal(field, value, fallback string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, invalid(field, fmt.Sprintf("Invalid number format for %s.", field))
	}
	return d, nil
}

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	minQuantity = decimal.NewFromInt(math.MinInt64)
)

func parseQuantity(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 1, nil
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	// JSON clients sometimes send 3.0
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, invalid("quantity", "Invalid number format for quantity.")
	}
	if !d.IsInteger() {
		return 0, invalid("quantity", "Quantity must be a positive integer.")
	}
	if d.GreaterThan(maxQuantity) || d.LessThan(minQuantity) {
		return 0, invalid("quantity", "Invalid number format for quantity.")
	}
	return d.IntPart(), nil
}

// RequireFields reports every name whose value is absent or blank.
func RequireFields(fields map[string]string, names ...string) error {
	var missing []string
	for _, name := range names {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return invalid(missing[0], "Missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// ValidateDate parses a YYYY-MM-DD calendar date.
func ValidateDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalid(field, fmt.Sprintf("Invalid date for %s. Expected YYYY-MM-DD.", field))
	}
	return t, nil
}

// NormalizePaymentStatus accepts PAID, NOT_PAID and the legacy "NOT PAID".
func NormalizePaymentStatus(value string) (PaymentStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch strings.ReplaceAll(v, " ", "_") {
	case string(StatusPaid):
		return StatusPaid, nil
	case string(StatusNotPaid):
		return StatusNotPaid, nil
	}
	return "", invalid("payment_status", "Invalid payment status. Allowed: NOT_PAID, PAID")
}

// ParseBill validates in and returns the bill it describes, with AmountDue
// and AmountDuePaymentMode resolved by the payment rules. ID, CreatedAt and
// (unless requireSerial) SerialNumber are left for the caller.
func ParseBill(in BillInput, requireSerial bool) (Bill, error) {
	required := requiredBillFields
	if requireSerial {
		required = append([]string{"serial_number"}, requiredBillFields...)
	}
	if err := RequireFields(in.fields(), required...); err != nil {
		return Bill{}, err
	}
	if err := ValidateMobile(in.MobileNumber); err != nil {
		return Bill{}, err
	}
	orderDate, err := ValidateDate("order_date", in.OrderDate)
	if err != nil {
		return Bill{}, err
	}
	deliveryDate, err := ValidateDate("delivery_date", in.DeliveryDate)
	if err != nil {
		return Bill{}, err
	}
	advanceMode, err := ValidatePaymentMode("advance_payment_mode", in.AdvancePaymentMode, false)
	if err != nil {
		return Bill{}, err
	}
	amounts, err := ValidateAmounts(in.UnitPrice, in.AdvanceAmount, in.Quantity)
	if err != nil {
		return Bill{}, err
	}
	status, err := NormalizePaymentStatus(in.PaymentStatus)
	if err != nil {
		return Bill{}, err
	}
	settlement, err := Settle(amounts, status, in.AmountDuePaymentMode)
	if err != nil {
		return Bill{}, err
	}

	return Bill{
		SerialNumber:         strings.TrimSpace(in.SerialNumber),
		CustomerName:         strings.TrimSpace(in.CustomerName),
		MobileNumber:         in.MobileNumber,
		ProductSize:          in.ProductSize,
		Thickness:            in.Thickness,
		CurrentStatus:        in.CurrentStatus,
		Quantity:             amounts.Quantity,
		OrderDate:            orderDate,
		DeliveryDate:         deliveryDate,
		UnitPrice:            amounts.UnitPrice,
		AdvanceAmount:        amounts.Advance,
		AdvancePaymentMode:   advanceMode,
		AmountDue:            settlement.AmountDue,
		PaymentStatus:        status,
		AmountDuePaymentMode: settlement.DuePaymentMode,
	}, nil
}

// ParseIncome validates an income entry. The payment mode is optional.
func ParseIncome(in IncomeInput) (IncomeEntry, error) {
	fields := map[string]string{"date": in.Date, "description": in.Description, "amount": in.Amount}
	if err := RequireFields(fields, "date", "description", "amount"); err != nil {
		return IncomeEntry{}, err
	}
	date, err := ValidateDate("date", in.Date)
	if err != nil {
		return IncomeEntry{}, err
	}
	amount, err := ValidateAmount("amount", in.Amount)
	if err != nil {
		return IncomeEntry{}, err
	}
	mode, err := ValidatePaymentMode("payment_mode", in.PaymentMode, true)
	if err != nil {
		return IncomeEntry{}, err
	}
	return IncomeEntry{
		Date:        date,
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		PaymentMode: mode,
	}, nil
}

// ParseExpense validates an expense entry: amount >= 0, quantity >= 1.
func ParseExpense(in ExpenseInput) (ExpenseEntry, error) {
	fields := map[string]string{"date": in.Date, "description": in.Description, "amount": in.Amount}
	if err := RequireFields(fields, "date", "description", "amount"); err != nil {
		return ExpenseEntry{}, err
	}
	date, err := ValidateDate("date", in.Date)
	if err != nil {
		return ExpenseEntry{}, err
	}
	amount, err := ValidateAmount("amount", in.Amount)
	if err != nil {
		return ExpenseEntry{}, err
	}
	if amount.IsNegative() {
		return ExpenseEntry{}, invalid("amount", "Amount cannot be negative.")
	}
	qty, err := ValidateQuantity(in.Quantity)
	if err != nil {
		return ExpenseEntry{}, err
	}
	return ExpenseEntry{
		Date:        date,
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		Quantity:    qty,
	}, nil
}
