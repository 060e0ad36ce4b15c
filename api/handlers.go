/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to billing.Engine.

ENDPOINTS:
  Bills:
    GET    /api/bills                  List all bills, most recent first
    POST   /api/bills                  Create bill (serial assigned here)
    GET    /api/bills/search?term=     Search bills
    GET    /api/bills/export           CSV of all bills
    GET    /api/bills/{id}             Get bill
    PUT    /api/bills/{id}             Update bill
    DELETE /api/bills/{id}             Delete bill

  Ledger (ledger_handlers.go):
    GET    /api/income                 List income
    POST   /api/income                 Create income entry
    PUT    /api/income/{id}            Update income entry
    DELETE /api/income/{id}            Delete income entry
    GET    /api/income/summary         Totals per payment mode
    GET    /api/income/export          CSV of income
    GET    /api/expenses               List expenses
    POST   /api/expenses               Create expense
    PUT    /api/expenses/{id}          Update expense
    DELETE /api/expenses/{id}          Delete expense
    GET    /api/expenses/export        CSV of expenses

  Reporting:
    GET    /api/stats                  Dashboard aggregate
    GET    /api/payment-modes          Allowed payment modes
    GET    /api/integrity              Bills breaking balance rules
    GET    /healthz                    Liveness, pings the database

  Scenarios (scenarios.go, not mounted in production):
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Reset and load a demo scenario

REQUEST FLOW:
  1. Decode JSON body (numbers may arrive as strings)
  2. Check shape limits with validator tags
  3. Call the engine, which validates business rules
  4. Serialize response

ERROR HANDLING:
  Errors are returned as {"success": false, "error": kind, "message": text}
  with a status chosen by billing.Kind:
  - 400: validation
  - 404: not_found
  - 409: conflict (serial number already taken)
  - 500: internal (details logged, never returned)

SECURITY NOTE:
  No authentication. The server binds to loopback by default.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - export.go: CSV rendering
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Database is the store surface the handlers need beyond the engine.
type Database interface {
	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *billing.Engine
	DB     Database

	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger
}

// NewHandler creates a handler over engine. db may be nil, in which case
// /healthz only reports that the process is up and scenarios cannot load.
func NewHandler(engine *billing.Engine, db Database) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Handler{
		Engine:   engine,
		DB:       db,
		validate: v,
		now:      time.Now,
		log:      log.Logger.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// ListBills returns every bill as a JSON array.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.Engine.ListBills(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTOs(bills))
}

// SearchBills returns bills matching ?term=. An empty term lists all.
func (h *Handler) SearchBills(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	bills, err := h.Engine.SearchBills(r.Context(), term)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTOs(bills))
}

// GetBill returns one bill.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	bill, err := h.Engine.GetBill(r.Context(), billing.BillID(id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(*bill))
}

// CreateBill creates a bill and returns its assigned serial number.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req BillRequest
	if !h.decode(w, r, &req) {
		return
	}
	bill, err := h.Engine.CreateBill(r.Context(), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BillMutationResponse{
		Success:      true,
		Message:      fmt.Sprintf("Bill %s created successfully", bill.SerialNumber),
		SerialNumber: bill.SerialNumber,
		Bill:         toBillDTO(*bill),
	})
}

// UpdateBill replaces a bill. Moving it to PAID posts the final payment.
func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req BillRequest
	if !h.decode(w, r, &req) {
		return
	}
	bill, err := h.Engine.UpdateBill(r.Context(), billing.BillID(id), req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BillMutationResponse{
		Success:      true,
		Message:      "Bill updated successfully",
		SerialNumber: bill.SerialNumber,
		Bill:         toBillDTO(*bill),
	})
}

// DeleteBill removes a bill. Its ledger postings stay.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.DeleteBill(r.Context(), billing.BillID(id)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{Success: true, Message: "Bill deleted successfully"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and checks its validator tags. It
// writes the error response itself and reports whether to continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, &billing.ValidationError{Field: "body", Reason: "Invalid request body."})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeError(w, r, shapeError(err))
		return false
	}
	return true
}

// shapeError turns validator output into the first offending field.
func shapeError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &billing.ValidationError{
			Field:  fe.Field(),
			Reason: fmt.Sprintf("Field %s is too long (max %s characters).", fe.Field(), fe.Param()),
		}
	}
	return &billing.ValidationError{Field: "body", Reason: "Invalid request body."}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, &billing.ValidationError{Field: "id", Reason: fmt.Sprintf("Invalid id %q.", raw)})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind billing.ErrorKind) int {
	switch kind {
	case billing.KindValidation:
		return http.StatusBadRequest
	case billing.KindNotFound:
		return http.StatusNotFound
	case billing.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := billing.Kind(err)
	status := statusFor(kind)
	message := err.Error()

	switch kind {
	case billing.KindInternal:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		message = "Internal server error"
	case billing.KindNotFound:
		message = notFoundMessage(err)
	case billing.KindConflict:
		if errors.Is(err, billing.ErrDuplicateSerial) {
			message = "Serial number already exists."
		}
	}

	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   string(kind),
		Message: message,
	})
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, billing.ErrBillNotFound):
		return "Bill not found"
	case errors.Is(err, billing.ErrIncomeNotFound):
		return "Income entry not found"
	case errors.Is(err, billing.ErrExpenseNotFound):
		return "Expense entry not found"
	default:
		return "Not found"
	}
}
