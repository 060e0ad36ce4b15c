package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATION - Read-only views over the ledger
// =============================================================================

// MonthKeyLayout keys the monthly series.
const MonthKeyLayout = "2006-01"

// SeriesMonths is the length of the trailing monthly series.
const SeriesMonths = 12

// ModeTotal is the income received through one payment mode.
type ModeTotal struct {
	Mode  string
	Total decimal.Decimal
}

// MonthPoint is one month of the trailing series.
type MonthPoint struct {
	Month    string
	Income   decimal.Decimal
	Expenses decimal.Decimal
}

// Stats is the dashboard aggregate.
type Stats struct {
	TotalIncome     decimal.Decimal
	TotalExpenses   decimal.Decimal
	NetProfit       decimal.Decimal
	PendingPayments decimal.Decimal
	Monthly         []MonthPoint
}

// SummarizeIncome totals positive income per payment mode. Every known
// mode is present even at zero. Modes outside PaymentModes found in
// storage are listed after the known ones, alphabetically. Entries without
// a mode are bucketed as "Unspecified", which is listed last and only when
// its total is positive.
func SummarizeIncome(entries []IncomeEntry) []ModeTotal {
	totals := make(map[PaymentMode]decimal.Decimal)
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			continue
		}
		totals[e.PaymentMode] = totals[e.PaymentMode].Add(e.Amount)
	}

	summary := make([]ModeTotal, 0, len(PaymentModes)+len(totals))
	for _, m := range PaymentModes {
		summary = append(summary, ModeTotal{Mode: string(m), Total: totals[m]})
	}

	var others []string
	for m := range totals {
		if m != ModeUnspecified && !m.IsKnown() {
			others = append(others, string(m))
		}
	}
	sort.Strings(others)
	for _, m := range others {
		summary = append(summary, ModeTotal{Mode: m, Total: totals[PaymentMode(m)]})
	}

	if unspecified := totals[ModeUnspecified]; unspecified.IsPositive() {
		summary = append(summary, ModeTotal{Mode: UnspecifiedLabel, Total: unspecified})
	}
	return summary
}

// MonthlySeries buckets income and expenses into the SeriesMonths months
// ending with now's month, oldest first. Months without activity are zero.
func MonthlySeries(now time.Time, income []IncomeEntry, expenses []ExpenseEntry) []MonthPoint {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	series := make([]MonthPoint, SeriesMonths)
	index := make(map[string]int, SeriesMonths)
	for i := 0; i < SeriesMonths; i++ {
		key := first.AddDate(0, i-(SeriesMonths-1), 0).Format(MonthKeyLayout)
		series[i] = MonthPoint{Month: key, Income: decimal.Zero, Expenses: decimal.Zero}
		index[key] = i
	}

	for _, e := range income {
		if i, ok := index[e.Date.Format(MonthKeyLayout)]; ok {
			series[i].Income = series[i].Income.Add(e.Amount)
		}
	}
	for _, e := range expenses {
		if i, ok := index[e.Date.Format(MonthKeyLayout)]; ok {
			series[i].Expenses = series[i].Expenses.Add(e.Amount)
		}
	}
	return series
}

// BuildStats computes the dashboard aggregate. pending must hold the
// NOT_PAID bills.
func BuildStats(now time.Time, income []IncomeEntry, expenses []ExpenseEntry, pending []Bill) Stats {
	s := Stats{
		TotalIncome:     decimal.Zero,
		TotalExpenses:   decimal.Zero,
		PendingPayments: decimal.Zero,
	}
	for _, e := range income {
		s.TotalIncome = s.TotalIncome.Add(e.Amount)
	}
	for _, e := range expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
	}
	for _, b := range pending {
		if b.PaymentStatus == StatusNotPaid {
			s.PendingPayments = s.PendingPayments.Add(b.AmountDue)
		}
	}
	s.NetProfit = s.TotalIncome.Sub(s.TotalExpenses)
	s.Monthly = MonthlySeries(now, income, expenses)
	return s
}
