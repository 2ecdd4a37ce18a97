package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/easybewerbung/bewerbung-api/internal/api/shared"
	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/generation"
	"github.com/easybewerbung/bewerbung-api/internal/ledger"
	"github.com/easybewerbung/bewerbung-api/internal/service"
	"github.com/easybewerbung/bewerbung-api/internal/service/auth"
	"github.com/easybewerbung/bewerbung-api/internal/store"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidPathParameter is returned for a missing or malformed path parameter.
var ErrInvalidPathParameter = errors.New("invalid path parameter")

// requestErrors are validation sentinels whose text is safe to show clients.
var requestErrors = []error{
	domain.ErrNoDocTypes,
	domain.ErrTooManyDocTypes,
	domain.ErrDuplicateDocType,
	domain.ErrInvalidDocType,
	domain.ErrEmptyDisplayName,
	domain.ErrInvalidCreditCost,
	domain.ErrInvalidLanguageSource,
	domain.ErrInvalidProvider,
	domain.ErrEmptyModel,
	domain.ErrEmptyPromptTemplate,
	generation.ErrInvalidModel,
}

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden

	// Billing errors
	case errors.Is(err, service.ErrInsufficientCredits),
		errors.Is(err, ledger.ErrInsufficientCredits):
		return http.StatusPaymentRequired

	// Not found errors
	case errors.Is(err, service.ErrApplicationNotFound),
		errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, service.ErrScoreNotFound),
		errors.Is(err, catalog.ErrTemplateNotFound),
		errors.Is(err, catalog.ErrTemplateInactive),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, catalog.ErrTemplateExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, catalog.ErrInvalidTemplate),
		errors.Is(err, ErrInvalidPathParameter),
		errors.Is(err, shared.ErrEmptyBody),
		errors.Is(err, store.ErrInvalidEntity),
		errors.As(err, &verrs):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrQueueUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verrs validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, auth.ErrForbidden):
		return "Insufficient permissions"

	case errors.Is(err, service.ErrInsufficientCredits),
		errors.Is(err, ledger.ErrInsufficientCredits):
		return "Insufficient credits"

	case errors.Is(err, service.ErrApplicationNotFound):
		return "Application not found"
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, service.ErrScoreNotFound):
		return "No matching score calculated yet"
	case errors.Is(err, catalog.ErrTemplateNotFound):
		return "Document type not found"
	case errors.Is(err, catalog.ErrTemplateInactive):
		return "Document type is not available"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, catalog.ErrTemplateExists):
		return "Template already exists"

	case errors.As(err, &verrs):
		return SanitizeValidationError(verrs)
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, catalog.ErrInvalidTemplate):
		for _, target := range requestErrors {
			if errors.Is(err, target) {
				return "Invalid request: " + target.Error()
			}
		}
		if errors.Is(err, catalog.ErrInvalidTemplate) {
			return "Invalid template"
		}
		return "Invalid request"
	case errors.Is(err, ErrInvalidPathParameter):
		return "Invalid path parameter"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body required"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, service.ErrQueueUnavailable):
		return "Service is busy, please retry later"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a message naming the
// first failing field by its JSON name.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	case "dive":
		return "invalid entry"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted error. defaultMsg replaces the generic message of unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		msg = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusPaymentRequired || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err, opts...)
}

// HandleValidationError responds 400 for a request body that failed to
// decode or validate.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "Invalid request format"
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		msg = SanitizeValidationError(verrs)
	case errors.Is(err, shared.ErrEmptyBody):
		msg = "Request body required"
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
}
