package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER POSTER - Income derived from bill events
// =============================================================================

// Posting is an income entry owed because of a bill event.
type Posting struct {
	BillID      BillID
	Kind        PostingKind
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Mode        PaymentMode
}

// Poster appends bill-derived income. It is only handed the Store of an
// open transaction, so the posting commits with the bill write that
// triggered it or not at all.
type Poster struct {
	log zerolog.Logger
}

// NewPoster creates a Poster.
func NewPoster(log zerolog.Logger) *Poster {
	return &Poster{log: log}
}

// PostIncome appends p to the income ledger. A bill is credited its advance
// at most once: a second advance posting does nothing and reports false.
// Final payments are posted on every NOT_PAID to PAID edge, so a bill that
// is reopened and paid again gets one final posting per payment.
func (p *Poster) PostIncome(ctx context.Context, store Store, posting Posting) (bool, error) {
	if !posting.Amount.IsPositive() {
		return false, fmt.Errorf("posting for bill %d: amount %s is not positive", posting.BillID, posting.Amount)
	}

	if posting.Kind.OncePerBill() {
		exists, err := store.HasPosting(ctx, posting.BillID, posting.Kind)
		if err != nil {
			return false, fmt.Errorf("failed to check existing posting: %w", err)
		}
		if exists {
			p.log.Warn().
				Int64("bill_id", int64(posting.BillID)).
				Str("kind", string(posting.Kind)).
				Msg("bill already has a posting of this kind, skipping")
			return false, nil
		}
	}

	entry := IncomeEntry{
		Date:        posting.Date,
		Description: posting.Description,
		Amount:      posting.Amount,
		PaymentMode: posting.Mode,
		BillID:      posting.BillID,
		PostingKind: posting.Kind,
	}
	if err := store.InsertIncome(ctx, &entry); err != nil {
		return false, fmt.Errorf("failed to post %s income: %w", posting.Kind, err)
	}

	p.log.Info().
		Int64("bill_id", int64(posting.BillID)).
		Int64("income_id", int64(entry.ID)).
		Str("kind", string(posting.Kind)).
		Str("amount", posting.Amount.String()).
		Str("mode", posting.Mode.Label()).
		Msg("posted income")
	return true, nil
}
