// Package ledger charges and refunds credits for pipeline work. Every charge
// is keyed by a reference that identifies the unit of work, so re-running a
// unit after a crash never charges it twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
)

// Ledger errors
var (
	// ErrInsufficientCredits is returned when the balance does not cover a charge.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrAlreadyRefunded is returned when a unit of work is charged again after
	// its charge was reversed. The unit must not be retried.
	ErrAlreadyRefunded = errors.New("charge already refunded")

	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("credit amount cannot be negative")
)

// Ledger wraps a store.CreditStore with the idempotency rules callers rely on.
type Ledger struct {
	store  store.CreditStore
	logger *slog.Logger
}

// New creates a Ledger.
func New(credits store.CreditStore, logger *slog.Logger) *Ledger {
	if credits == nil {
		panic("credit store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:  credits,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// TryDebit charges amount to the user under reference. A zero amount is a
// no-op. A reference that was already charged counts as success.
func (l *Ledger) TryDebit(ctx context.Context, userID uuid.UUID, amount int, reference string) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}

	err := l.store.Debit(ctx, userID, amount, reference)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrCreditAlreadyApplied):
		logger.FromContextOrDefault(ctx, l.logger).Debug("debit already applied",
			slog.String("reference", reference))
		return nil
	case errors.Is(err, store.ErrInsufficientCredits):
		return ErrInsufficientCredits
	case errors.Is(err, store.ErrCreditRefunded):
		return ErrAlreadyRefunded
	default:
		return fmt.Errorf("debit %s: %w", reference, err)
	}
}

// Refund reverses the charge booked under debitReference. Refunding twice, or
// refunding a charge that never happened, is a no-op.
func (l *Ledger) Refund(ctx context.Context, userID uuid.UUID, amount int, debitReference string) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}

	err := l.store.Refund(ctx, userID, amount, debitReference)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrCreditAlreadyApplied), errors.Is(err, store.ErrCreditNotDebited):
		logger.FromContextOrDefault(ctx, l.logger).Debug("nothing to refund",
			slog.String("reference", debitReference),
			slog.String("reason", err.Error()))
		return nil
	default:
		return fmt.Errorf("refund %s: %w", debitReference, err)
	}
}

// Balance returns the user's current credits.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return l.store.Balance(ctx, userID)
}

// Covers reports whether the user's balance is at least amount.
func (l *Ledger) Covers(ctx context.Context, userID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	balance, err := l.store.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Transactions returns the most recent journal entries of a user.
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditTransaction, error) {
	return l.store.ListTransactions(ctx, userID, limit)
}
