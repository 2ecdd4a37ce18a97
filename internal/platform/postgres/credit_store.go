package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/platform/logger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/google/uuid"
)

// PostgresCreditStore implements store.CreditStore. Each balance change runs
// in its own transaction: the journal insert claims the reference, then a
// conditional update moves the balance. Either both commit or neither does.
type PostgresCreditStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCreditStore creates a credit store. It needs the pool itself
// because it owns its transactions.
func NewPostgresCreditStore(db *sql.DB, logger *slog.Logger) *PostgresCreditStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCreditStore{
		db:     db,
		logger: logger.With(slog.String("component", "credit_store")),
	}
}

var _ store.CreditStore = (*PostgresCreditStore)(nil)

// Debit implements store.CreditStore.Debit
func (s *PostgresCreditStore) Debit(ctx context.Context, userID uuid.UUID, amount int, reference string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		claimed, err := claimReference(ctx, tx, userID, -amount, domain.CreditKindDebit, reference)
		if err != nil {
			return err
		}
		if !claimed {
			refunded, err := referenceExists(ctx, tx, domain.RefundReference(reference))
			if err != nil {
				return err
			}
			if refunded {
				return store.ErrCreditRefunded
			}
			return store.ErrCreditAlreadyApplied
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE users
			SET credits = credits - $1, updated_at = $3
			WHERE id = $2 AND credits >= $1
		`, amount, userID, time.Now().UTC())
		if err != nil {
			return MapError(err)
		}
		if err := CheckRowsAffected(result, store.ErrInsufficientCredits); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrInsufficientCredits) && !errors.Is(err, store.ErrCreditAlreadyApplied) {
			log.Error("credit debit failed",
				slog.String("user_id", userID.String()),
				slog.String("reference", reference),
				slog.String("error", err.Error()))
		}
		return err
	}

	log.Info("credits debited",
		slog.String("user_id", userID.String()),
		slog.Int("amount", amount),
		slog.String("reference", reference))
	return nil
}

// Refund implements store.CreditStore.Refund
func (s *PostgresCreditStore) Refund(ctx context.Context, userID uuid.UUID, amount int, debitReference string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)
	refundRef := domain.RefundReference(debitReference)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		debited, err := referenceExists(ctx, tx, debitReference)
		if err != nil {
			return err
		}
		if !debited {
			return store.ErrCreditNotDebited
		}

		claimed, err := claimReference(ctx, tx, userID, amount, domain.CreditKindRefund, refundRef)
		if err != nil {
			return err
		}
		if !claimed {
			return store.ErrCreditAlreadyApplied
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE users SET credits = credits + $1, updated_at = $3 WHERE id = $2
		`, amount, userID, time.Now().UTC())
		if err != nil {
			return MapError(err)
		}
		return CheckRowsAffected(result, store.ErrUserNotFound)
	})
	if err != nil {
		if !errors.Is(err, store.ErrCreditAlreadyApplied) {
			log.Error("credit refund failed",
				slog.String("user_id", userID.String()),
				slog.String("reference", refundRef),
				slog.String("error", err.Error()))
		}
		return err
	}

	log.Info("credits refunded",
		slog.String("user_id", userID.String()),
		slog.Int("amount", amount),
		slog.String("reference", refundRef))
	return nil
}

// claimReference inserts the journal row and reports whether this call
// created it. A missing user surfaces as ErrUserNotFound.
func claimReference(
	ctx context.Context,
	tx *sql.Tx,
	userID uuid.UUID,
	amount int,
	kind domain.CreditKind,
	reference string,
) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, kind, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reference) DO NOTHING
	`, uuid.New(), userID, amount, kind, reference, time.Now().UTC())
	if err != nil {
		if IsForeignKeyViolation(err) {
			return false, store.ErrUserNotFound
		}
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func referenceExists(ctx context.Context, tx *sql.Tx, reference string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM credit_transactions WHERE reference = $1)`, reference,
	).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	return exists, nil
}

// Balance implements store.CreditStore.Balance
func (s *PostgresCreditStore) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		return 0, mapNotFound(err, store.ErrUserNotFound)
	}
	return credits, nil
}

// ListTransactions implements store.CreditStore.ListTransactions
func (s *PostgresCreditStore) ListTransactions(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, kind, reference, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	txs := []domain.CreditTransaction{}
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
