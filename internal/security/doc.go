// Package security carries the identity a piece of work runs under.
// A Subject is attached to a context.Context by the HTTP layer (from a
// signed token) and captured by the work queue at enqueue time, so that
// background tasks execute with the same rights as the caller who
// submitted them, or elevated to the system administrator when requested.
package security
