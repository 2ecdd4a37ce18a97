package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrConflict is returned when a conditional update found the row in a
	// state that does not allow the transition.
	ErrConflict = errors.New("state conflict")

	// Entity-specific "not found" errors

	ErrUserNotFound           = fmt.Errorf("%w: user", ErrNotFound)
	ErrApplicationNotFound    = fmt.Errorf("%w: application", ErrNotFound)
	ErrTemplateNotFound       = fmt.Errorf("%w: template", ErrNotFound)
	ErrGenerationTaskNotFound = fmt.Errorf("%w: generation task", ErrNotFound)
	ErrTaskDocumentNotFound   = fmt.Errorf("%w: generation task document", ErrNotFound)
	ErrMatchingTaskNotFound   = fmt.Errorf("%w: matching score task", ErrNotFound)
	ErrMatchingScoreNotFound  = fmt.Errorf("%w: matching score", ErrNotFound)
	ErrTaskNotFound           = fmt.Errorf("%w: task", ErrNotFound)

	// Entity-specific "duplicate" errors

	ErrTemplateExists = fmt.Errorf("%w: template", ErrDuplicate)

	// ErrDocumentTerminal is returned when a generation task document has
	// already reached done or failed.
	ErrDocumentTerminal = fmt.Errorf("%w: document already finished", ErrConflict)

	// Credit ledger errors

	// ErrInsufficientCredits is returned when a debit would take the balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrCreditAlreadyApplied is returned when a ledger entry with the same
	// reference exists. Callers treat it as success of the earlier attempt.
	ErrCreditAlreadyApplied = fmt.Errorf("%w: credit reference", ErrDuplicate)

	// ErrCreditRefunded is returned when debiting a reference whose earlier
	// debit has already been refunded.
	ErrCreditRefunded = errors.New("credit reference already refunded")

	// ErrCreditNotDebited is returned when refunding a reference that was never debited.
	ErrCreditNotDebited = fmt.Errorf("%w: credit debit", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "template", "generation_task")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
