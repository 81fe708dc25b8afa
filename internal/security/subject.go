package security

import (
	"context"
	"slices"
)

// RoleAdmin grants every permission.
const RoleAdmin = "admin"

// Subject identifies a principal and the roles it holds.
type Subject struct {
	Name  string   `json:"name"            yaml:"name"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

var (
	// System is the internal administrator principal used for elevated work.
	System = Subject{Name: "_system", Roles: []string{RoleAdmin}}

	// Anonymous is used when no subject is attached to a context.
	Anonymous = Subject{Name: "_anonymous"}
)

// NewSubject creates a subject with a de-duplicated, sorted role list.
func NewSubject(name string, roles ...string) Subject {
	r := slices.Clone(roles)
	slices.Sort(r)
	return Subject{Name: name, Roles: slices.Compact(r)}
}

// HasRole reports whether the subject holds the given role.
func (s Subject) HasRole(role string) bool {
	return slices.Contains(s.Roles, role)
}

// IsAdmin reports whether the subject holds administrator rights.
func (s Subject) IsAdmin() bool {
	return s.HasRole(RoleAdmin)
}

// IsPermitted reports whether the subject may act on behalf of the given role.
// Administrators are permitted everything.
func (s Subject) IsPermitted(role string) bool {
	return s.IsAdmin() || s.HasRole(role)
}

type contextKey string

const subjectContextKey contextKey = "subject"

// WithSubject returns a copy of ctx carrying the subject.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// SubjectFromContext returns the subject attached to ctx, if any.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(subjectContextKey).(Subject)
	return s, ok
}

// CurrentSubject returns the subject attached to ctx, falling back to Anonymous.
func CurrentSubject(ctx context.Context) Subject {
	if s, ok := SubjectFromContext(ctx); ok {
		return s
	}
	return Anonymous
}

// CheckPermission returns ErrForbidden unless the subject in ctx is permitted
// the given role.
func CheckPermission(ctx context.Context, role string) error {
	if !CurrentSubject(ctx).IsPermitted(role) {
		return ErrForbidden
	}
	return nil
}

// CheckAdmin returns ErrForbidden unless the subject in ctx is an administrator.
func CheckAdmin(ctx context.Context) error {
	if !CurrentSubject(ctx).IsAdmin() {
		return ErrForbidden
	}
	return nil
}
