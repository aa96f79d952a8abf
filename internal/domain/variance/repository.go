package variance

import (
	"context"
	"time"

	"cafepos/internal/core/id"
)

// WasteRepository persists waste logs.
type WasteRepository interface {
	Create(ctx context.Context, log *WasteLog) error

	// List returns logs newest first.
	List(ctx context.Context, filter WasteFilter) ([]WasteLog, error)

	// Totals groups logs by waste type. Bounds are inclusive.
	Totals(ctx context.Context, filter WasteFilter) (map[WasteType]Totals, error)
}

// CountRepository persists physical counts.
type CountRepository interface {
	Create(ctx context.Context, count *PhysicalCount) error
	ListByIngredient(ctx context.Context, ingredientID id.ID, limit int) ([]PhysicalCount, error)
}

// RecordRepository persists period variance records.
type RecordRepository interface {
	Create(ctx context.Context, record *Record) error

	// ListSince returns records created at or after since, newest first.
	ListSince(ctx context.Context, since time.Time) ([]Record, error)
}

// WasteFilter narrows waste queries.
type WasteFilter struct {
	IngredientID *id.ID
	Type         *WasteType
	From         *time.Time
	To           *time.Time
	Limit        int
}
