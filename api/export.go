/*
export.go - CSV export of bills, income and expenses

PURPOSE:
  Renders a table as CSV (header row, one row per record, CRLF line
  endings) for spreadsheet users. The same rows back the HTTP download
  and the `export` CLI subcommand.

FILE NAMES:
  <kind>_<YYYYMMDD_HHMMSS>.csv, stamped with the export time.

SEE ALSO:
  - handlers.go: Export routes
  - cmd/server/export.go: CLI entry point
*/
package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/warp/billing-engine/billing"
)

// ExportKind names an exportable table.
type ExportKind string

const (
	ExportBills    ExportKind = "bills"
	ExportIncome   ExportKind = "income"
	ExportExpenses ExportKind = "expenses"
)

// ExportKinds lists every table that can be exported.
var ExportKinds = []ExportKind{ExportBills, ExportIncome, ExportExpenses}

const exportStampLayout = "20060102_150405"

// ParseExportKind accepts bills, income or expenses.
func ParseExportKind(s string) (ExportKind, error) {
	for _, k := range ExportKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown export %q (want bills, income or expenses)", s)
}

// ExportFilename is the file name for an export taken at t.
func ExportFilename(kind ExportKind, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", kind, t.Format(exportStampLayout))
}

// ExportRecords loads kind from the engine and returns its CSV rows,
// header first.
func ExportRecords(ctx context.Context, engine *billing.Engine, kind ExportKind) ([][]string, error) {
	switch kind {
	case ExportBills:
		bills, err := engine.ListBills(ctx)
		if err != nil {
			return nil, err
		}
		return billRecords(bills), nil
	case ExportIncome:
		entries, err := engine.ListIncome(ctx)
		if err != nil {
			return nil, err
		}
		return incomeRecords(entries), nil
	case ExportExpenses:
		entries, err := engine.ListExpenses(ctx)
		if err != nil {
			return nil, err
		}
		return expenseRecords(entries), nil
	default:
		return nil, fmt.Errorf("unknown export %q", kind)
	}
}

// WriteCSV writes records with CRLF line endings.
func WriteCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// ExportToDir writes kind to a new timestamped file in dir and returns its
// path. dir is created if missing.
func ExportToDir(ctx context.Context, engine *billing.Engine, kind ExportKind, dir string, now time.Time) (string, error) {
	records, err := ExportRecords(ctx, engine, kind)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(dir, ExportFilename(kind, now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Export returns a handler that downloads kind as CSV.
func (h *Handler) Export(kind ExportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := ExportRecords(r.Context(), h.Engine, kind)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s", ExportFilename(kind, h.now())))
		w.WriteHeader(http.StatusOK)
		if err := WriteCSV(w, records); err != nil {
			h.log.Error().Err(err).Str("export", string(kind)).Msg("csv export interrupted")
		}
	}
}

// ---- rows ----

var billHeader = []string{
	"ID", "Serial Number", "Customer Name", "Mobile Number", "Order Date", "Delivery Date",
	"Current Status", "Product Size", "Thickness", "Quantity", "Unit Price", "Total",
	"Advance Amount", "Advance Payment Mode", "Amount Due", "Payment Status",
	"Amount Due Payment Mode", "Created At",
}

func billRecords(bills []billing.Bill) [][]string {
	records := make([][]string, 0, len(bills)+1)
	records = append(records, billHeader)
	for _, b := range bills {
		records = append(records, []string{
			strconv.FormatInt(int64(b.ID), 10),
			b.SerialNumber,
			b.CustomerName,
			b.MobileNumber,
			formatDate(b.OrderDate),
			formatDate(b.DeliveryDate),
			b.CurrentStatus,
			b.ProductSize,
			b.Thickness,
			strconv.FormatInt(b.Quantity, 10),
			b.UnitPrice.StringFixed(2),
			b.Total().StringFixed(2),
			b.AdvanceAmount.StringFixed(2),
			string(b.AdvancePaymentMode),
			b.AmountDue.StringFixed(2),
			string(b.PaymentStatus),
			string(b.AmountDuePaymentMode),
			b.CreatedAt.Format(time.RFC3339),
		})
	}
	return records
}

func incomeRecords(entries []billing.IncomeEntry) [][]string {
	records := make([][]string, 0, len(entries)+1)
	records = append(records, []string{"ID", "Date", "Description", "Amount", "Payment Mode", "Bill ID"})
	for _, e := range entries {
		billID := ""
		if e.BillID != 0 {
			billID = strconv.FormatInt(int64(e.BillID), 10)
		}
		records = append(records, []string{
			strconv.FormatInt(int64(e.ID), 10),
			formatDate(e.Date),
			e.Description,
			e.Amount.StringFixed(2),
			e.PaymentMode.Label(),
			billID,
		})
	}
	return records
}

func expenseRecords(entries []billing.ExpenseEntry) [][]string {
	records := make([][]string, 0, len(entries)+1)
	records = append(records, []string{"ID", "Date", "Description", "Amount", "Quantity"})
	for _, e := range entries {
		records = append(records, []string{
			strconv.FormatInt(int64(e.ID), 10),
			formatDate(e.Date),
			e.Description,
			e.Amount.StringFixed(2),
			strconv.FormatInt(e.Quantity, 10),
		})
	}
	return records
}
