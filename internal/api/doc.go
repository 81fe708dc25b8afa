// Package api exposes the work queue over HTTP. It authenticates callers
// with subject tokens, validates enqueue requests and translates queue
// errors into status codes without leaking internal details.
package api
