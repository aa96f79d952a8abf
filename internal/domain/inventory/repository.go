package inventory

import (
	"context"
	"time"

	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// IngredientRepository persists ingredients.
type IngredientRepository interface {
	// Reads

	GetByID(ctx context.Context, ingredientID id.ID) (*Ingredient, error)

	// GetByIDs returns the ingredients found; missing ids are omitted.
	GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*Ingredient, error)

	List(ctx context.Context, filter ListFilter) ([]*Ingredient, error)

	// ListLowStock returns active ingredients with current_stock < min_stock,
	// ordered by current_stock ascending.
	ListLowStock(ctx context.Context) ([]*Ingredient, error)

	// Locking

	// LockForUpdate returns the ingredients with row locks held until the
	// surrounding transaction ends. Locks are taken in ascending id order.
	// Must be called within a transaction.
	LockForUpdate(ctx context.Context, ids []id.ID) (map[id.ID]*Ingredient, error)

	// Writes

	Create(ctx context.Context, ingredient *Ingredient) error

	// UpdateStock sets current_stock. Fails when stock would be negative.
	UpdateStock(ctx context.Context, ingredientID id.ID, stock types.Quantity) error

	SetAvailability(ctx context.Context, ingredientID id.ID, available bool) error
}

// LedgerRepository appends and reads stock ledger entries.
// There is no update or delete: the ledger is append-only.
type LedgerRepository interface {
	Append(ctx context.Context, entries ...entity.StockTransaction) error

	// List returns entries newest first.
	List(ctx context.Context, filter entity.LedgerFilter) ([]entity.StockTransaction, error)

	// SumByType totals quantities per transaction type for entries with
	// from <= created_at <= to.
	SumByType(ctx context.Context, ingredientID id.ID, from, to time.Time) (map[entity.TransactionType]types.Quantity, error)
}

// ListFilter narrows ingredient listings.
type ListFilter struct {
	Search     string
	OnlyActive bool
	OnlyLow    bool
	Available  *bool // nil lists both
	Limit      int
	Offset     int
}
