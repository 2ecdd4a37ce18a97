package store

import (
	"context"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/google/uuid"
)

// CreditStore is the persistence side of the credit ledger. Every balance
// change writes a journal entry keyed by a unique reference, so replaying an
// operation with the same reference never changes the balance twice.
type CreditStore interface {
	// Debit subtracts amount from the user's balance if it covers it.
	// Returns ErrInsufficientCredits, ErrUserNotFound, ErrCreditAlreadyApplied
	// or ErrCreditRefunded.
	Debit(ctx context.Context, userID uuid.UUID, amount int, reference string) error

	// Refund reverses the debit booked under debitReference, journaling it as
	// domain.RefundReference(debitReference). Returns ErrCreditAlreadyApplied
	// if the refund was already booked and ErrCreditNotDebited if there is no
	// such debit.
	Refund(ctx context.Context, userID uuid.UUID, amount int, debitReference string) error

	// Balance returns the current credits of a user.
	Balance(ctx context.Context, userID uuid.UUID) (int, error)

	// ListTransactions returns the most recent journal entries of a user.
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditTransaction, error)
}
