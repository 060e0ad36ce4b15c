package api

import (
	"context"
	"net/http"
	"time"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// INCOME HANDLERS
// =============================================================================

// ListIncome returns every income entry as a JSON array, newest first.
func (h *Handler) ListIncome(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.ListIncome(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIncomeDTOs(entries))
}

// CreateIncome records a manual income entry.
func (h *Handler) CreateIncome(w http.ResponseWriter, r *http.Request) {
	var req IncomeRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.Engine.CreateIncome(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, EntryResponse{
		Success: true,
		Message: "Income added successfully",
		ID:      int64(entry.ID),
	})
}

// UpdateIncome edits an income entry.
func (h *Handler) UpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req IncomeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.Engine.UpdateIncome(r.Context(), billing.EntryID(id), req.toInput()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Income updated successfully", ID: id})
}

// DeleteIncome removes an income entry.
func (h *Handler) DeleteIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteIncome(r.Context(), billing.EntryID(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Income deleted successfully"})
}

// IncomeSummary returns income totals per payment mode.
func (h *Handler) IncomeSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Engine.IncomeSummary(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(totals))
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns every expense as a JSON array, newest first.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.ListExpenses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTOs(entries))
}

// CreateExpense records an expense.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.Engine.CreateExpense(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, EntryResponse{
		Success: true,
		Message: "Expense added successfully",
		ID:      int64(entry.ID),
	})
}

// UpdateExpense edits an expense.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req ExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.Engine.UpdateExpense(r.Context(), billing.EntryID(id), req.toInput()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Expense updated successfully", ID: id})
}

// DeleteExpense removes an expense.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteExpense(r.Context(), billing.EntryID(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Expense deleted successfully"})
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// Stats returns totals, pending payments and the trailing monthly series.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

// PaymentModes lists the modes bills and income accept.
func (h *Handler) PaymentModes(w http.ResponseWriter, r *http.Request) {
	modes := make([]string, 0, len(billing.PaymentModes))
	for _, m := range billing.PaymentModes {
		modes = append(modes, string(m))
	}
	writeJSON(w, http.StatusOK, modes)
}

// Integrity scans all bills and lists broken balance rules.
func (h *Handler) Integrity(w http.ResponseWriter, r *http.Request) {
	violations, err := h.Engine.CheckIntegrity(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]IntegrityDTO, 0, len(violations))
	for _, v := range violations {
		out = append(out, IntegrityDTO{
			BillID:       int64(v.BillID),
			SerialNumber: v.SerialNumber,
			Rule:         v.Rule,
			Detail:       v.Detail,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"count":      len(out),
		"violations": out,
	})
}

// Healthz reports liveness and whether the database answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			h.log.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
