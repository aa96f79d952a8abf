package entity

import (
	"context"
	"time"
)

// Validatable entities check their own invariants without touching storage.
// Failures are apperror validation errors.
type Validatable interface {
	Validate(ctx context.Context) error
}

// Timestamps are embedded by every stored row that can change.
type Timestamps struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Now is the current UTC time at the microsecond precision of timestamptz,
// so values read back from PostgreSQL compare equal to the ones written.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewTimestamps sets both fields to Now.
func NewTimestamps() Timestamps {
	now := Now()
	return Timestamps{CreatedAt: now, UpdatedAt: now}
}

// Touch moves UpdatedAt to Now.
func (t *Timestamps) Touch() {
	t.UpdatedAt = Now()
}
