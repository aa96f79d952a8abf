// Package context carries the request identity and tracing ids through
// context.Context.
package context

import (
	"context"

	"cafepos/internal/core/id"
)

// Staff is the authenticated cafe employee behind a request.
type Staff struct {
	ID       id.ID
	Username string
	Role     string
	// Superuser passes every role check.
	Superuser bool
}

// Can reports whether the staff member holds one of roles.
func (s *Staff) Can(roles ...string) bool {
	if s == nil {
		return false
	}
	if s.Superuser {
		return true
	}
	for _, r := range roles {
		if r == s.Role {
			return true
		}
	}
	return false
}

type staffKey struct{}

// WithStaff stores the authenticated staff member in ctx.
func WithStaff(ctx context.Context, s *Staff) context.Context {
	return context.WithValue(ctx, staffKey{}, s)
}

// StaffFrom returns the staff member stored in ctx.
func StaffFrom(ctx context.Context) (*Staff, bool) {
	s, ok := ctx.Value(staffKey{}).(*Staff)
	return s, ok && s != nil
}

// ActorID returns the id recorded as the actor of ledger and audit rows,
// or the nil id for anonymous calls such as the worker.
func ActorID(ctx context.Context) id.ID {
	if s, ok := StaffFrom(ctx); ok {
		return s.ID
	}
	return id.Nil()
}

// ActorLabel is ActorID as text, empty for anonymous calls.
func ActorLabel(ctx context.Context) string {
	if s, ok := StaffFrom(ctx); ok {
		return s.ID.String()
	}
	return ""
}
