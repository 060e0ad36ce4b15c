/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the billing domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

TYPES:
  Bills:     BillDTO, BillRequest, BillMutationResponse
  Income:    IncomeDTO, IncomeRequest
  Expenses:  ExpenseDTO, ExpenseRequest
  Reporting: StatsDTO, MonthDTO, SummaryResponse, IntegrityDTO

VALIDATION:
  Request structs carry validator/v10 tags for shape limits (lengths,
  formats). Business rules (required fields, amount bounds, payment modes)
  are checked by billing.ParseBill and friends so every client gets the
  same messages.

NUMBERS:
  The browser forms post numbers as strings. Number accepts either a JSON
  number or a string and keeps the text for the domain parser.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: Domain types
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/billing-engine/billing"
)

// Number is a JSON number or numeric string, kept as text.
type Number string

// UnmarshalJSON accepts 12, 12.5, "12", "" and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	*n = Number(num.String())
	return nil
}

// =============================================================================
// BILLS
// =============================================================================

// BillRequest is the body of create and update. SerialNumber is ignored on
// create.
type BillRequest struct {
	SerialNumber         string `json:"serial_number" validate:"max=32"`
	CustomerName         string `json:"customer_name" validate:"max=200"`
	MobileNumber         string `json:"mobile_number" validate:"max=20"`
	OrderDate            string `json:"order_date" validate:"max=10"`
	DeliveryDate         string `json:"delivery_date" validate:"max=10"`
	CurrentStatus        string `json:"current_status" validate:"max=200"`
	ProductSize          string `json:"product_size" validate:"max=100"`
	Thickness            string `json:"thickness" validate:"max=100"`
	UnitPrice            Number `json:"unit_price" validate:"max=32"`
	AdvanceAmount        Number `json:"advance_amount" validate:"max=32"`
	Quantity             Number `json:"quantity" validate:"max=12"`
	AdvancePaymentMode   string `json:"advance_payment_mode" validate:"max=16"`
	PaymentStatus        string `json:"payment_status" validate:"max=16"`
	AmountDuePaymentMode string `json:"amount_due_payment_mode" validate:"max=16"`

	// TotalPrice is the name older clients use for the unit price.
	TotalPrice Number `json:"total_price" validate:"max=32"`
}

func (r BillRequest) toInput() billing.BillInput {
	unitPrice := r.UnitPrice
	if unitPrice == "" {
		unitPrice = r.TotalPrice
	}
	return billing.BillInput{
		SerialNumber:         r.SerialNumber,
		CustomerName:         r.CustomerName,
		MobileNumber:         r.MobileNumber,
		OrderDate:            r.OrderDate,
		DeliveryDate:         r.DeliveryDate,
		CurrentStatus:        r.CurrentStatus,
		ProductSize:          r.ProductSize,
		Thickness:            r.Thickness,
		UnitPrice:            string(unitPrice),
		AdvanceAmount:        string(r.AdvanceAmount),
		Quantity:             string(r.Quantity),
		AdvancePaymentMode:   r.AdvancePaymentMode,
		PaymentStatus:        r.PaymentStatus,
		AmountDuePaymentMode: r.AmountDuePaymentMode,
	}
}

// BillDTO represents a bill in API responses.
type BillDTO struct {
	ID                   int64   `json:"id"`
	SerialNumber         string  `json:"serial_number"`
	CustomerName         string  `json:"customer_name"`
	MobileNumber         string  `json:"mobile_number"`
	OrderDate            string  `json:"order_date"`
	DeliveryDate         string  `json:"delivery_date"`
	CurrentStatus        string  `json:"current_status"`
	ProductSize          string  `json:"product_size"`
	Thickness            string  `json:"thickness"`
	Quantity             int64   `json:"quantity"`
	UnitPrice            float64 `json:"unit_price"`
	AdvanceAmount        float64 `json:"advance_amount"`
	AdvancePaymentMode   string  `json:"advance_payment_mode"`
	AmountDue            float64 `json:"amount_due"`
	PaymentStatus        string  `json:"payment_status"`
	AmountDuePaymentMode *string `json:"amount_due_payment_mode"`
	CreatedAt            string  `json:"created_at"`
}

func toBillDTO(b billing.Bill) BillDTO {
	return BillDTO{
		ID:                   int64(b.ID),
		SerialNumber:         b.SerialNumber,
		CustomerName:         b.CustomerName,
		MobileNumber:         b.MobileNumber,
		OrderDate:            formatDate(b.OrderDate),
		DeliveryDate:         formatDate(b.DeliveryDate),
		CurrentStatus:        b.CurrentStatus,
		ProductSize:          b.ProductSize,
		Thickness:            b.Thickness,
		Quantity:             b.Quantity,
		UnitPrice:            b.UnitPrice.InexactFloat64(),
		AdvanceAmount:        b.AdvanceAmount.InexactFloat64(),
		AdvancePaymentMode:   string(b.AdvancePaymentMode),
		AmountDue:            b.AmountDue.InexactFloat64(),
		PaymentStatus:        string(b.PaymentStatus),
		AmountDuePaymentMode: modePtr(b.AmountDuePaymentMode),
		CreatedAt:            b.CreatedAt.Format(time.RFC3339),
	}
}

func toBillDTOs(bills []billing.Bill) []BillDTO {
	out := make([]BillDTO, 0, len(bills))
	for _, b := range bills {
		out = append(out, toBillDTO(b))
	}
	return out
}

// BillMutationResponse is returned by create and update.
type BillMutationResponse struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	SerialNumber string  `json:"serial_number"`
	Bill         BillDTO `json:"bill"`
}

// =============================================================================
// INCOME AND EXPENSES
// =============================================================================

// IncomeRequest is the body of income create and update.
type IncomeRequest struct {
	Date        string `json:"date" validate:"max=10"`
	Description string `json:"description" validate:"max=500"`
	Amount      Number `json:"amount" validate:"max=32"`
	PaymentMode string `json:"payment_mode" validate:"max=16"`
}

func (r IncomeRequest) toInput() billing.IncomeInput {
	return billing.IncomeInput{
		Date:        r.Date,
		Description: r.Description,
		Amount:      string(r.Amount),
		PaymentMode: r.PaymentMode,
	}
}

// IncomeDTO represents an income entry in API responses.
type IncomeDTO struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	PaymentMode *string `json:"payment_mode"`
	BillID      *int64  `json:"bill_id,omitempty"`
	PostingKind string  `json:"posting_kind,omitempty"`
}

func toIncomeDTO(e billing.IncomeEntry) IncomeDTO {
	dto := IncomeDTO{
		ID:          int64(e.ID),
		Date:        formatDate(e.Date),
		Description: e.Description,
		Amount:      e.Amount.InexactFloat64(),
		PaymentMode: modePtr(e.PaymentMode),
		PostingKind: string(e.PostingKind),
	}
	if e.BillID != 0 {
		id := int64(e.BillID)
		dto.BillID = &id
	}
	return dto
}

func toIncomeDTOs(entries []billing.IncomeEntry) []IncomeDTO {
	out := make([]IncomeDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toIncomeDTO(e))
	}
	return out
}

// ExpenseRequest is the body of expense create and update.
type ExpenseRequest struct {
	Date        string `json:"date" validate:"max=10"`
	Description string `json:"description" validate:"max=500"`
	Amount      Number `json:"amount" validate:"max=32"`
	Quantity    Number `json:"quantity" validate:"max=12"`
}

func (r ExpenseRequest) toInput() billing.ExpenseInput {
	return billing.ExpenseInput{
		Date:        r.Date,
		Description: r.Description,
		Amount:      string(r.Amount),
		Quantity:    string(r.Quantity),
	}
}

// ExpenseDTO represents an expense in API responses.
type ExpenseDTO struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Quantity    int64   `json:"quantity"`
}

func toExpenseDTO(e billing.ExpenseEntry) ExpenseDTO {
	return ExpenseDTO{
		ID:          int64(e.ID),
		Date:        formatDate(e.Date),
		Description: e.Description,
		Amount:      e.Amount.InexactFloat64(),
		Quantity:    e.Quantity,
	}
}

func toExpenseDTOs(entries []billing.ExpenseEntry) []ExpenseDTO {
	out := make([]ExpenseDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toExpenseDTO(e))
	}
	return out
}

// EntryResponse is returned by income and expense mutations.
type EntryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// =============================================================================
// REPORTING
// =============================================================================

// SummaryResponse maps payment mode to income received through it.
type SummaryResponse struct {
	Success bool               `json:"success"`
	Summary map[string]float64 `json:"summary"`
	Order   []string           `json:"order"`
}

func toSummaryResponse(totals []billing.ModeTotal) SummaryResponse {
	resp := SummaryResponse{
		Success: true,
		Summary: make(map[string]float64, len(totals)),
		Order:   make([]string, 0, len(totals)),
	}
	for _, t := range totals {
		resp.Summary[t.Mode] = t.Total.InexactFloat64()
		resp.Order = append(resp.Order, t.Mode)
	}
	return resp
}

// MonthDTO is one month of the trailing series.
type MonthDTO struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

// StatsDTO is the dashboard aggregate.
type StatsDTO struct {
	Success         bool       `json:"success"`
	TotalIncome     float64    `json:"total_income"`
	TotalExpenses   float64    `json:"total_expenses"`
	NetProfit       float64    `json:"net_profit"`
	PendingPayments float64    `json:"pending_payments"`
	MonthlyData     []MonthDTO `json:"monthly_data"`
}

func toStatsDTO(s *billing.Stats) StatsDTO {
	dto := StatsDTO{
		Success:         true,
		TotalIncome:     s.TotalIncome.InexactFloat64(),
		TotalExpenses:   s.TotalExpenses.InexactFloat64(),
		NetProfit:       s.NetProfit.InexactFloat64(),
		PendingPayments: s.PendingPayments.InexactFloat64(),
		MonthlyData:     make([]MonthDTO, 0, len(s.Monthly)),
	}
	for _, m := range s.Monthly {
		dto.MonthlyData = append(dto.MonthlyData, MonthDTO{
			Month:    m.Month,
			Income:   m.Income.InexactFloat64(),
			Expenses: m.Expenses.InexactFloat64(),
		})
	}
	return dto
}

// IntegrityDTO is one invariant violation.
type IntegrityDTO struct {
	BillID       int64  `json:"bill_id"`
	SerialNumber string `json:"serial_number"`
	Rule         string `json:"rule"`
	Detail       string `json:"detail"`
}

// ErrorResponse is the standard error response. Error is the error kind
// (validation, not_found, conflict, internal); Message is human-readable.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func modePtr(m billing.PaymentMode) *string {
	if m == billing.ModeUnspecified {
		return nil
	}
	s := string(m)
	return &s
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(billing.DateLayout)
}
