package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditKind distinguishes ledger entries.
type CreditKind string

// Ledger entry kinds
const (
	CreditKindDebit  CreditKind = "debit"
	CreditKindRefund CreditKind = "refund"
)

// CreditTransaction is one journal row of the credit ledger. Amount is
// negative for debits and positive for refunds.
type CreditTransaction struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Amount    int        `json:"amount"`
	Kind      CreditKind `json:"kind"`
	Reference string     `json:"reference"`
	CreatedAt time.Time  `json:"created_at"`
}

// GenerationDebitReference identifies the charge for one document of a task.
func GenerationDebitReference(taskID uuid.UUID, docType string) string {
	return "generation:" + taskID.String() + ":" + docType
}

// MatchingDebitReference identifies the charge for a scoring task.
func MatchingDebitReference(taskID uuid.UUID) string {
	return "matching:" + taskID.String()
}

// RefundReference derives the refund reference for a debit reference.
func RefundReference(debitReference string) string {
	return debitReference + ":refund"
}
