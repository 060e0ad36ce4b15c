/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Bills are created with today's serials
	- Advances and final payments are posted once
	- Loading a scenario replaces whatever was there before
*/
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

func TestScenario_AllLoadCleanly(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			// GIVEN: A loader for every listed scenario
			load, ok := scenarioLoaders[sc.ID]
			require.True(t, ok, "scenario %s has no loader", sc.ID)

			ts := newTestServer(t)
			engine := ts.quietEngine()

			// WHEN: Loading it
			err := load(context.Background(), engine, testNow)

			// THEN: It succeeds and breaks no bill invariant
			require.NoError(t, err)
			violations, err := engine.CheckIntegrity(context.Background())
			require.NoError(t, err)
			assert.Empty(t, violations)
		})
	}
}

func TestScenario_SettleUp(t *testing.T) {
	// GIVEN: The settle-up scenario
	ts := newTestServer(t)

	// WHEN: Loading it through the API
	rec := ts.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "settle-up"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Two of three bills are paid and keep their stored balance
	bills := decodeBody[[]BillDTO](t, ts.do(http.MethodGet, "/api/bills", nil))
	require.Len(t, bills, 3)
	status := map[string]string{}
	due := map[string]float64{}
	for _, b := range bills {
		status[b.CustomerName] = b.PaymentStatus
		due[b.CustomerName] = b.AmountDue
	}
	assert.Equal(t, string(billing.StatusPaid), status["Anand Textiles"])
	assert.Equal(t, string(billing.StatusPaid), status["Lotus Bakery"])
	assert.Equal(t, string(billing.StatusNotPaid), status["Green Leaf Cafe"])
	assert.Equal(t, 1400.0, due["Anand Textiles"])
	assert.Equal(t, 1000.0, due["Lotus Bakery"])
	assert.Equal(t, 400.0, due["Green Leaf Cafe"])

	// And income holds three advances plus two final payments
	income := decodeBody[[]IncomeDTO](t, ts.do(http.MethodGet, "/api/income", nil))
	assert.Len(t, income, 5)

	stats := decodeBody[StatsDTO](t, ts.do(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, 400.0, stats.PendingPayments)
	// 1000+400+200 advances, 1400+1000 final payments
	assert.Equal(t, 4000.0, stats.TotalIncome)
}

func TestScenario_LoadResetsDatabase(t *testing.T) {
	// GIVEN: A database with an unrelated bill
	ts := newTestServer(t)
	ts.createBill(workedBill())

	// WHEN: Loading the month-end scenario, which creates no bills
	rec := ts.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "month-end"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The earlier bill and its advance are gone
	bills := decodeBody[[]BillDTO](t, ts.do(http.MethodGet, "/api/bills", nil))
	assert.Empty(t, bills)
	income := decodeBody[[]IncomeDTO](t, ts.do(http.MethodGet, "/api/income", nil))
	assert.Len(t, income, 6)

	// And ids restart
	expenses := decodeBody[[]ExpenseDTO](t, ts.do(http.MethodGet, "/api/expenses", nil))
	require.Len(t, expenses, 6)
	var minID int64 = expenses[0].ID
	for _, e := range expenses {
		if e.ID < minID {
			minID = e.ID
		}
	}
	assert.Equal(t, int64(1), minID)
}

func TestScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_NotMountedInProduction(t *testing.T) {
	ts := newTestServer(t)
	router := NewRouter(NewHandler(ts.quietEngine(), ts.store), RouterConfig{Production: true})

	rec := httptestDo(router, http.MethodGet, "/api/scenarios")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func httptestDo(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
