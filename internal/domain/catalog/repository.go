package catalog

import (
	"context"

	"cafepos/internal/core/id"
)

// ProductRepository persists products.
type ProductRepository interface {
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// GetByIDs returns the products found; missing ids are omitted.
	GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*Product, error)

	List(ctx context.Context, filter ProductFilter) ([]*Product, error)

	Create(ctx context.Context, product *Product) error

	// DecrementStock subtracts qty from a simple-stock product's counter only
	// if enough stock remains. Returns false when the counter is too low.
	DecrementStock(ctx context.Context, productID id.ID, qty int) (bool, error)
}

// RecipeRepository persists recipes together with their lines.
type RecipeRepository interface {
	// GetByProductID returns the product's recipe with lines, or a NotFound AppError.
	GetByProductID(ctx context.Context, productID id.ID) (*Recipe, error)

	// GetByProductIDs returns recipes keyed by product id; products without a
	// recipe are omitted.
	GetByProductIDs(ctx context.Context, productIDs []id.ID) (map[id.ID]*Recipe, error)

	Create(ctx context.Context, recipe *Recipe) error
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Search          string
	Category        string
	IncludeArchived bool
	Limit           int
	Offset          int
}
