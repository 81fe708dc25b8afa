package security

import (
	"context"
	"log/slog"
)

// Elevator switches an execution context to administrator rights.
type Elevator interface {
	// Elevate returns a context that runs as the system administrator.
	Elevate(ctx context.Context) context.Context
}

// AdministrationContext elevates to the System subject and records who
// requested the elevation.
type AdministrationContext struct {
	logger *slog.Logger
}

// NewAdministrationContext creates the default Elevator.
func NewAdministrationContext(logger *slog.Logger) *AdministrationContext {
	return &AdministrationContext{
		logger: logger.With("component", "administration_context"),
	}
}

// Elevate implements Elevator.
func (a *AdministrationContext) Elevate(ctx context.Context) context.Context {
	a.logger.Debug("elevating to administrator",
		"requested_by", CurrentSubject(ctx).Name)
	return WithSubject(ctx, System)
}

// RunAsAdmin executes fn with administrator rights.
func (a *AdministrationContext) RunAsAdmin(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(a.Elevate(ctx))
}

var _ Elevator = (*AdministrationContext)(nil)
