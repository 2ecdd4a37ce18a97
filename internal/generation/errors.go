package generation

import (
	"errors"
	"fmt"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
)

// Error kinds shared by every provider adapter. Adapters return a
// *ProviderError whose Unwrap yields exactly one of these.
var (
	// ErrRateLimited is returned when the provider throttled the request. Retryable.
	ErrRateLimited = errors.New("provider rate limited the request")

	// ErrProviderUnavailable covers timeouts, network failures and 5xx responses. Retryable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidModel is returned when the provider/model pair is not allowed.
	ErrInvalidModel = errors.New("invalid provider model")

	// ErrContentRejected is returned when the provider refused the prompt or
	// the output on policy grounds.
	ErrContentRejected = errors.New("content rejected by provider policy")

	// ErrProviderFatal is any other non-retryable provider failure.
	ErrProviderFatal = errors.New("provider request failed")
)

// ProviderError carries the context of a failed provider call without
// exposing the SDK or transport error that caused it.
type ProviderError struct {
	Provider   domain.Provider
	Model      string
	Kind       error
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s/%s: %v", e.Provider, e.Model, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the error kind so callers can use errors.Is.
func (e *ProviderError) Unwrap() error {
	return e.Kind
}

// maxMessageLength bounds provider text copied into errors.
const maxMessageLength = 300

// NewProviderError builds a ProviderError. Message is truncated.
func NewProviderError(provider domain.Provider, model string, kind error, status int, message string) *ProviderError {
	if r := []rune(message); len(r) > maxMessageLength {
		message = string(r[:maxMessageLength]) + "..."
	}
	return &ProviderError{
		Provider:   provider,
		Model:      model,
		Kind:       kind,
		StatusCode: status,
		Message:    message,
	}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// KindFromStatus maps an HTTP status code onto the error taxonomy. Adapters
// refine the result with provider-specific error codes.
func KindFromStatus(status int) error {
	switch {
	case status == 429:
		return ErrRateLimited
	case status == 404:
		return ErrInvalidModel
	case status == 408, status >= 500:
		return ErrProviderUnavailable
	default:
		return ErrProviderFatal
	}
}
