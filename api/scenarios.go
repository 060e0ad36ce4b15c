/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos and manual testing of the dashboard. Every record goes
	through billing.Engine, so serials, balances and ledger postings are
	produced exactly as for real input.

AVAILABLE SCENARIOS:

	walk-in-day:  Three bills created today, advances in different modes
	settle-up:    Bills created with an advance, then marked PAID
	month-end:    Manual income and expenses over the last three months

HOW SCENARIOS WORK:
 1. Reset database (clear all rows, restart ids)
 2. Create bills, income and expenses through the engine
 3. Optionally update bills to PAID, posting final payments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "settle-up"}

NOTE:

	Scenarios reset the database. The routes are not mounted in production.

SEE ALSO:
  - server.go: Scenario routes
  - billing/engine.go: Operations the loaders call
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/billing-engine/billing"
)

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ScenarioRequest is the body of POST /api/scenarios/load.
type ScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required,max=64"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioLoader func(ctx context.Context, e *billing.Engine, today time.Time) error

var scenarios = []ScenarioDTO{
	{
		ID:          "walk-in-day",
		Name:        "Walk-in Day",
		Description: "Three bills created today with advances in cash, UPI and card",
	},
	{
		ID:          "settle-up",
		Name:        "Settle Up",
		Description: "Bills paid off after delivery, showing final payment postings",
	},
	{
		ID:          "month-end",
		Name:        "Month End",
		Description: "Manual income and expenses over three months for the dashboard",
	},
}

var scenarioLoaders = map[string]scenarioLoader{
	"walk-in-day": loadWalkInDayScenario,
	"settle-up":   loadSettleUpScenario,
	"month-end":   loadMonthEndScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		h.writeError(w, r, &billing.ValidationError{Field: "scenario_id", Reason: fmt.Sprintf("Unknown scenario %q.", req.ScenarioID)})
		return
	}
	if h.DB == nil {
		h.writeError(w, r, fmt.Errorf("scenario %s: no database to reset", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.DB.Reset(ctx); err != nil {
		h.writeError(w, r, fmt.Errorf("reset database: %w", err))
		return
	}
	if err := load(ctx, h.Engine, h.now()); err != nil {
		h.writeError(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func demoBill(customer, mobile string, orderDate time.Time, unitPrice, qty, advance, mode string) billing.BillInput {
	return billing.BillInput{
		CustomerName:       customer,
		MobileNumber:       mobile,
		OrderDate:          orderDate.Format(billing.DateLayout),
		DeliveryDate:       orderDate.AddDate(0, 0, 7).Format(billing.DateLayout),
		CurrentStatus:      "Order received",
		ProductSize:        "12x18",
		Thickness:          "5mm",
		UnitPrice:          unitPrice,
		Quantity:           qty,
		AdvanceAmount:      advance,
		AdvancePaymentMode: mode,
		PaymentStatus:      string(billing.StatusNotPaid),
	}
}

func loadWalkInDayScenario(ctx context.Context, e *billing.Engine, today time.Time) error {
	for _, in := range []billing.BillInput{
		demoBill("Meera Stores", "9876543210", today, "450", "2", "300", "CASH"),
		demoBill("Kiran Photo Studio", "9123456780", today, "1200", "1", "500", "UPI"),
		demoBill("Sunrise Clinic", "", today, "75.50", "10", "0", "CARD"),
	} {
		if _, err := e.CreateBill(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func loadSettleUpScenario(ctx context.Context, e *billing.Engine, today time.Time) error {
	orders := []struct {
		in     billing.BillInput
		dueVia string
	}{
		{demoBill("Anand Textiles", "9988776655", today.AddDate(0, 0, -10), "800", "3", "1000", "ACCOUNT"), "UPI"},
		{demoBill("Lotus Bakery", "9090909090", today.AddDate(0, 0, -6), "350", "4", "400", "CASH"), "CASH"},
		{demoBill("Green Leaf Cafe", "9812345678", today.AddDate(0, 0, -2), "600", "1", "200", "CARD"), ""},
	}

	for _, o := range orders {
		bill, err := e.CreateBill(ctx, o.in)
		if err != nil {
			return err
		}
		if o.dueVia == "" {
			continue
		}
		paid := o.in
		paid.SerialNumber = bill.SerialNumber
		paid.CurrentStatus = "Delivered"
		paid.PaymentStatus = string(billing.StatusPaid)
		paid.AmountDuePaymentMode = o.dueVia
		if _, err := e.UpdateBill(ctx, bill.ID, paid); err != nil {
			return err
		}
	}
	return nil
}

func loadMonthEndScenario(ctx context.Context, e *billing.Engine, today time.Time) error {
	for months := 2; months >= 0; months-- {
		day := today.AddDate(0, -months, 0).Format(billing.DateLayout)

		if _, err := e.CreateIncome(ctx, billing.IncomeInput{
			Date: day, Description: "Counter sales", Amount: fmt.Sprintf("%d", 4000+months*750), PaymentMode: "CASH",
		}); err != nil {
			return err
		}
		if _, err := e.CreateIncome(ctx, billing.IncomeInput{
			Date: day, Description: "Scrap sale", Amount: "250",
		}); err != nil {
			return err
		}
		if _, err := e.CreateExpense(ctx, billing.ExpenseInput{
			Date: day, Description: "Vinyl rolls", Amount: fmt.Sprintf("%d", 1800+months*200), Quantity: "6",
		}); err != nil {
			return err
		}
		if _, err := e.CreateExpense(ctx, billing.ExpenseInput{
			Date: day, Description: "Shop rent", Amount: "1500",
		}); err != nil {
			return err
		}
	}
	return nil
}
