// Package service orchestrates document generation, matching scores and
// credit reads on top of the stores, the catalog, the ledger and the task runner.
package service

import (
	"errors"
	"fmt"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/ledger"
	"github.com/easybewerbung/bewerbung-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// The API layer maps them to HTTP status codes.
var (
	// ErrApplicationNotFound indicates the application does not exist or is
	// owned by another user. Both cases look the same to the caller.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrTaskNotFound indicates an unknown task, or a task of another
	// application or user.
	ErrTaskNotFound = errors.New("task not found")

	// ErrScoreNotFound indicates the application has no current matching score.
	ErrScoreNotFound = errors.New("matching score not found")

	// ErrInsufficientCredits indicates the balance does not cover the
	// required up-front cost.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidRequest indicates request data that failed domain validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrQueueUnavailable indicates the task was stored but could not be queued.
	ErrQueueUnavailable = errors.New("task queue unavailable")
)

// ServiceError wraps unexpected errors with the failing operation.
type ServiceError struct {
	// Service is the service name (e.g. "generation", "matching")
	Service string
	// Operation is the operation that failed (e.g. "start_generation")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError maps known store, ledger and domain errors to the service
// sentinels and wraps everything else.
func NewServiceError(service, operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrApplicationNotFound), errors.Is(err, store.ErrApplicationNotFound):
		return ErrApplicationNotFound
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, store.ErrGenerationTaskNotFound),
		errors.Is(err, store.ErrMatchingTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, ErrScoreNotFound), errors.Is(err, store.ErrMatchingScoreNotFound):
		return ErrScoreNotFound
	case errors.Is(err, ErrInsufficientCredits), errors.Is(err, ledger.ErrInsufficientCredits):
		return ErrInsufficientCredits
	case errors.Is(err, ErrQueueUnavailable):
		return ErrQueueUnavailable
	case isRequestError(err):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

func isRequestError(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest,
		domain.ErrNoDocTypes,
		domain.ErrTooManyDocTypes,
		domain.ErrDuplicateDocType,
		domain.ErrInvalidDocType,
		domain.ErrEmptyApplicationID,
		domain.ErrEmptyUserID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
