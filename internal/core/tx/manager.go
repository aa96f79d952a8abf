// Package tx defines the unit of work that stock mutations run in.
// postgres.TxManager and memory.Store implement it.
package tx

import (
	"context"
)

// Manager runs fn atomically: it commits when fn returns nil and rolls
// back otherwise. A ctx that already carries a transaction is joined.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager can also open read-only transactions.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Run is RunInTransaction for work that yields a value. The value is
// dropped when the transaction fails.
func Run[T any](ctx context.Context, m Manager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Snapshot runs fn so that all of its reads see one state: read-only when
// m supports it, in a regular transaction otherwise.
func Snapshot(ctx context.Context, m Manager, fn func(ctx context.Context) error) error {
	if ro, ok := m.(ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return m.RunInTransaction(ctx, fn)
}
