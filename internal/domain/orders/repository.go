package orders

import (
	"context"
	"time"

	"cafepos/internal/core/id"
)

// Repository persists orders and their items.
type Repository interface {
	// Create inserts the order and all its items.
	Create(ctx context.Context, order *Order) error

	// GetByID returns the order with items and payment.
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// GetForUpdate is GetByID with the order row locked. Must be called within a transaction.
	GetForUpdate(ctx context.Context, orderID id.ID) (*Order, error)

	UpdateStatus(ctx context.Context, orderID id.ID, status Status) error

	// List returns orders newest first, without items.
	List(ctx context.Context, filter ListFilter) ([]*Order, error)

	// ExpirePending moves PENDING orders created before the cutoff to EXPIRED
	// and returns their ids.
	ExpirePending(ctx context.Context, before time.Time) ([]id.ID, error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByOrderID(ctx context.Context, orderID id.ID) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error

	// FailPending marks PENDING payments of the given orders as FAILED.
	FailPending(ctx context.Context, orderIDs []id.ID) error
}
