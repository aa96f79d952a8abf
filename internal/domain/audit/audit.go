// Package audit defines the audit trail collaborator used by domain services.
package audit

import (
	"context"

	"cafepos/internal/core/id"
)

// Action is the kind of change being audited.
type Action string

const (
	ActionUpdate Action = "update"
	ActionCancel Action = "cancel"
	ActionCount  Action = "count"
)

// Recorder persists audit entries. Implementations write inside the caller's
// transaction when one is present in ctx.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop discards audit entries.
type Nop struct{}

func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }

// Change builds a {"old": ..., "new": ...} pair for a single field.
func Change(oldVal, newVal any) map[string]any {
	return map[string]any{"old": oldVal, "new": newVal}
}
