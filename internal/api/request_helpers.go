package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/workqueue/internal/api/shared"
	"github.com/phrazzld/workqueue/internal/security"
)

// errMissingSubject is returned when a protected handler runs without the
// authentication middleware.
var errMissingSubject = errors.New("no subject in request context")

// subjectFromRequest returns the authenticated subject of the request.
func subjectFromRequest(r *http.Request) (security.Subject, bool) {
	subject, ok := security.SubjectFromContext(r.Context())
	if !ok || subject.Name == "" {
		return security.Subject{}, false
	}
	return subject, true
}

// parseAndValidateRequest decodes the request body into v and validates it.
// It writes a 400 response and returns false on failure.
func parseAndValidateRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// handleAPIError writes the response for err. A non-empty message replaces
// the safe default message for the error.
func handleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
