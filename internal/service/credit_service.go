package service

import (
	"context"
	"log/slog"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/google/uuid"
)

// DefaultTransactionLimit bounds ListTransactions when no limit is given.
const DefaultTransactionLimit = 50

// CreditReader is the read side of the credit ledger.
type CreditReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditTransaction, error)
}

// CreditService exposes a user's balance and journal.
type CreditService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]domain.CreditTransaction, error)
}

type creditServiceImpl struct {
	ledger CreditReader
	logger *slog.Logger
}

// NewCreditService creates a CreditService.
func NewCreditService(ledger CreditReader, logger *slog.Logger) (CreditService, error) {
	if ledger == nil {
		return nil, &ServiceError{
			Service:   "credit",
			Operation: "create_service",
			Message:   "ledger cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &creditServiceImpl{ledger: ledger, logger: logger.With("component", "credit_service")}, nil
}

func (s *creditServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read balance", "user_id", userID, "error", err)
		return 0, NewServiceError("credit", "get_balance", "failed to read balance", err)
	}
	return balance, nil
}

func (s *creditServiceImpl) ListTransactions(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]domain.CreditTransaction, error) {
	if limit <= 0 || limit > DefaultTransactionLimit {
		limit = DefaultTransactionLimit
	}
	txs, err := s.ledger.Transactions(ctx, userID, limit)
	if err != nil {
		s.logger.Error("failed to list transactions", "user_id", userID, "error", err)
		return nil, NewServiceError("credit", "list_transactions", "failed to list transactions", err)
	}
	return txs, nil
}
