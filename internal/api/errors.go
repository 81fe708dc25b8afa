package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/workqueue/internal/security"
	"github.com/phrazzld/workqueue/internal/work"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes. Unknown
// errors become 500 so internal failure modes are never exposed.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrExpiredToken),
		errors.Is(err, security.ErrTokenNotYetValid):
		return http.StatusUnauthorized

	case errors.Is(err, security.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, work.ErrUnknownTaskType),
		errors.Is(err, work.ErrNonPersistableTask),
		errors.As(err, &verrs):
		return http.StatusBadRequest

	case errors.Is(err, work.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrTokenNotYetValid):
		return "Invalid token"
	case errors.Is(err, security.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, security.ErrForbidden):
		return "Not permitted"
	case errors.Is(err, work.ErrUnknownTaskType):
		return "Unknown task type"
	case errors.Is(err, work.ErrNonPersistableTask):
		return "Task arguments are invalid"
	case errors.As(err, &verrs):
		return SanitizeValidationError(err)
	case errors.Is(err, work.ErrQueueClosed):
		return "Work queue is shutting down"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator errors into a message naming the
// first offending field and rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "printascii", "excludesall":
		return "invalid characters"
	default:
		return "validation failed"
	}
}
