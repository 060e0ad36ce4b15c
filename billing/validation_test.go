package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBillInput() BillInput {
	return BillInput{
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

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Reason
}

func TestValidateMobile(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"", true},
		{"9123456789", true},
		{"1000000000", true},
		{"0123456789", false},
		{"912345678", false},
		{"91234567890", false},
		{"91234abcde", false},
		{"+919123456", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := ValidateMobile(tt.value)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidatePaymentMode(t *testing.T) {
	mode, err := ValidatePaymentMode("advance_payment_mode", " upi ", false)
	require.NoError(t, err)
	assert.Equal(t, ModeUPI, mode)

	_, err = ValidatePaymentMode("advance_payment_mode", "", false)
	assert.Equal(t, "Payment mode is required.", reasonOf(t, err))

	mode, err = ValidatePaymentMode("payment_mode", "", true)
	require.NoError(t, err)
	assert.Equal(t, ModeUnspecified, mode)

	_, err = ValidatePaymentMode("payment_mode", "CHEQUE", true)
	assert.Equal(t, "Invalid Payment Mode. Allowed: CASH, ACCOUNT, UPI, CARD", reasonOf(t, err))
}

func TestValidateAmounts(t *testing.T) {
	tests := []struct {
		name                     string
		price, advance, quantity string
		wantDue                  string
		wantErr                  string
	}{
		{name: "worked example", price: "100", advance: "100", quantity: "3", wantDue: "200"},
		{name: "defaults", price: "50", wantDue: "50"},
		{name: "advance equals total", price: "10.50", advance: "21", quantity: "2", wantDue: "0"},
		{name: "decimal quantity that is whole", price: "10", quantity: "3.0", wantDue: "30"},
		{name: "bad price", price: "abc", wantErr: "Invalid number format for unit_price."},
		{name: "bad advance", price: "1", advance: "x", wantErr: "Invalid number format for advance_amount."},
		{name: "bad quantity", price: "1", quantity: "two", wantErr: "Invalid number format for quantity."},
		{name: "negative price", price: "-1", wantErr: "Total price cannot be negative."},
		{name: "negative advance", price: "1", advance: "-1", wantErr: "Advance amount cannot be negative."},
		{name: "zero quantity", price: "1", quantity: "0", wantErr: "Quantity must be a positive integer."},
		{name: "fractional quantity", price: "1", quantity: "1.5", wantErr: "Quantity must be a positive integer."},
		{name: "quantity past int64", price: "10", quantity: "18446744073709551617", wantErr: "Invalid number format for quantity."},
		{name: "quantity far past int64", price: "10", quantity: "99999999999999999999", wantErr: "Invalid number format for quantity."},
		{name: "quantity at int64 limit", price: "0", quantity: "9223372036854775807", wantDue: "0"},
		{name: "advance over total", price: "100", advance: "301", quantity: "3",
			wantErr: "Advance amount cannot be greater than total cost (Price * Quantity)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ValidateAmounts(tt.price, tt.advance, tt.quantity)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, reasonOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDue, a.Due().String())
		})
	}
}

func TestRequireFields_ListsEveryMissingField(t *testing.T) {
	err := RequireFields(map[string]string{"a": "x", "b": "  "}, "a", "b", "c")

	assert.Equal(t, "Missing required fields: b, c", reasonOf(t, err))
}

func TestNormalizePaymentStatus(t *testing.T) {
	for in, want := range map[string]PaymentStatus{
		"PAID":     StatusPaid,
		"paid":     StatusPaid,
		"NOT_PAID": StatusNotPaid,
		"NOT PAID": StatusNotPaid,
		"not paid": StatusNotPaid,
	} {
		got, err := NormalizePaymentStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizePaymentStatus("PARTIAL")
	assert.Equal(t, "Invalid payment status. Allowed: NOT_PAID, PAID", reasonOf(t, err))
}

func TestParseBill(t *testing.T) {
	bill, err := ParseBill(validBillInput(), false)

	require.NoError(t, err)
	assert.Equal(t, "200", bill.AmountDue.String())
	assert.Equal(t, int64(3), bill.Quantity)
	assert.Equal(t, ModeCash, bill.AdvancePaymentMode)
	assert.Equal(t, ModeUnspecified, bill.AmountDuePaymentMode)
	assert.Equal(t, "2025-03-10", bill.OrderDate.Format(DateLayout))
}

func TestParseBill_UpdateRequiresSerial(t *testing.T) {
	_, err := ParseBill(validBillInput(), true)

	assert.Equal(t, "Missing required fields: serial_number", reasonOf(t, err))
}

func TestParseBill_PaidClearsOrRequiresDueMode(t *testing.T) {
	// PAID with a balance needs a mode
	in := validBillInput()
	in.PaymentStatus = "PAID"
	_, err := ParseBill(in, false)
	assert.Equal(t, "Payment mode is required.", reasonOf(t, err))

	// PAID with nothing left drops whatever mode was sent
	in.AdvanceAmount = "300"
	in.AmountDuePaymentMode = "CARD"
	bill, err := ParseBill(in, false)
	require.NoError(t, err)
	assert.Equal(t, ModeUnspecified, bill.AmountDuePaymentMode)

	// NOT_PAID also drops it
	in = validBillInput()
	in.AmountDuePaymentMode = "CARD"
	bill, err = ParseBill(in, false)
	require.NoError(t, err)
	assert.Equal(t, ModeUnspecified, bill.AmountDuePaymentMode)
}

func TestParseIncome(t *testing.T) {
	entry, err := ParseIncome(IncomeInput{Date: "2025-03-01", Description: " Tip ", Amount: "20"})
	require.NoError(t, err)
	assert.Equal(t, "Tip", entry.Description)
	assert.Equal(t, ModeUnspecified, entry.PaymentMode)

	_, err = ParseIncome(IncomeInput{Date: "2025-03-01", Description: "Tip"})
	assert.Equal(t, "Missing required fields: amount", reasonOf(t, err))
}

func TestParseExpense(t *testing.T) {
	entry, err := ParseExpense(ExpenseInput{Date: "2025-03-01", Description: "Ink", Amount: "0"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Quantity)

	_, err = ParseExpense(ExpenseInput{Date: "2025-03-01", Description: "Ink", Amount: "5", Quantity: "0"})
	assert.Equal(t, "Quantity must be a positive integer.", reasonOf(t, err))

	_, err = ParseExpense(ExpenseInput{Date: "2025-13-01", Description: "Ink", Amount: "5"})
	assert.Equal(t, "Invalid date for date. Expected YYYY-MM-DD.", reasonOf(t, err))
}
