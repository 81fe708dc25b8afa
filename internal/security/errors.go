package security

import "errors"

// Common security errors
var (
	// ErrForbidden indicates the current subject lacks the required rights
	ErrForbidden = errors.New("subject is not permitted to perform this action")

	// ErrInvalidToken indicates the token format is invalid or signature doesn't match
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future)
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrEmptySubject indicates a token was requested for a subject without a name
	ErrEmptySubject = errors.New("subject name cannot be empty")
)
