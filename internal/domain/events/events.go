// Package events defines domain events emitted through the transactional outbox.
package events

import (
	"context"

	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// Event types
const (
	TypeInventoryDeducted = "inventory.deducted"
	TypeLowStock          = "inventory.low_stock"
	TypeOrderPaid         = "order.paid"
)

// Aggregate types
const (
	AggregateOrder      = "order"
	AggregateIngredient = "ingredient"
	AggregatePrepBatch  = "prep_batch"
)

// Event is a domain event to be published after the surrounding transaction commits.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher stores events. Publish must be called inside a transaction so the
// event commits or rolls back together with the state change that caused it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop drops all events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// DeductedLine is one ingredient movement inside a deduction event.
type DeductedLine struct {
	IngredientID id.ID          `json:"ingredientId"`
	Ingredient   string         `json:"ingredient"`
	Quantity     types.Quantity `json:"quantity"`
	Remaining    types.Quantity `json:"remaining"`
}

// DeductedPayload is the payload of TypeInventoryDeducted.
type DeductedPayload struct {
	ReferenceType string         `json:"referenceType"`
	ReferenceID   id.ID          `json:"referenceId"`
	Reference     string         `json:"reference"`
	Lines         []DeductedLine `json:"lines"`
}

// LowStockPayload is the payload of TypeLowStock.
type LowStockPayload struct {
	IngredientID id.ID          `json:"ingredientId"`
	Ingredient   string         `json:"ingredient"`
	Unit         string         `json:"unit"`
	CurrentStock types.Quantity `json:"currentStock"`
	MinStock     types.Quantity `json:"minStock"`
}

// NewLowStock builds a low stock event.
func NewLowStock(p LowStockPayload) Event {
	return Event{
		AggregateType: AggregateIngredient,
		AggregateID:   p.IngredientID,
		EventType:     TypeLowStock,
		Payload:       p,
	}
}
