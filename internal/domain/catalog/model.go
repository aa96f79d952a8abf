// Package catalog provides products and their recipes (bills of materials).
package catalog

import (
	"context"
	"math"
	"strings"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// Product is a sellable item.
//
// Simple-stock products track Stock directly. Products with RequiresBOM derive
// their stock from the recipe's bottleneck ingredient and ignore Stock.
type Product struct {
	ID          id.ID       `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Category    string      `db:"category" json:"category"`
	Price       types.Money `db:"price" json:"price"`
	Stock       int         `db:"stock" json:"stock"`
	Threshold   int         `db:"threshold" json:"threshold"`
	RequiresBOM bool        `db:"requires_bom" json:"requiresBom"`
	IsArchived  bool        `db:"is_archived" json:"isArchived"`

	entity.Timestamps
}

// NewProduct creates a manufactured (recipe-backed) product.
func NewProduct(name, category string, price types.Money) *Product {
	return &Product{
		ID:          id.New(),
		Name:        name,
		Category:    category,
		Price:       price,
		RequiresBOM: true,
		Timestamps:  entity.NewTimestamps(),
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(_ context.Context) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").WithDetail("field", "price")
	}
	if p.Stock < 0 {
		return apperror.NewValidation("stock cannot be negative").WithDetail("field", "stock")
	}
	return nil
}

// Recipe is the bill of materials of exactly one product.
type Recipe struct {
	ID          id.ID        `db:"id" json:"id"`
	ProductID   id.ID        `db:"product_id" json:"productId"`
	ProductName string       `db:"product_name" json:"productName"`
	Name        string       `db:"name" json:"name"`
	Lines       []RecipeLine `db:"-" json:"lines"`
}

// RecipeLine is one (ingredient, quantity per unit) pair.
type RecipeLine struct {
	RecipeID        id.ID          `db:"recipe_id" json:"-"`
	IngredientID    id.ID          `db:"ingredient_id" json:"ingredientId"`
	IngredientName  string         `db:"ingredient_name" json:"ingredientName"`
	Unit            string         `db:"unit" json:"unit"`
	QuantityPerUnit types.Quantity `db:"quantity_per_unit" json:"quantityPerUnit"`
}

// MaxUnits is the largest unit count one line may ask for. Order, prep and
// product quantities are INT4 columns.
const MaxUnits = math.MaxInt32

// ValidateUnits rejects unit counts outside 1..MaxUnits.
func ValidateUnits(qty int) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}
	if qty > MaxUnits {
		return apperror.NewValidation("quantity too large").
			WithDetail("quantity", qty).
			WithDetail("max", MaxUnits)
	}
	return nil
}

// Needed returns the ingredient amount required for qty units. A demand too
// large to represent is a validation error.
func (l RecipeLine) Needed(qty int) (types.Quantity, error) {
	needed, ok := l.QuantityPerUnit.MulInt(qty)
	if !ok {
		return 0, demandOverflow(l, qty)
	}
	return needed, nil
}

// AddNeeded adds qty units of l to total.
func (l RecipeLine) AddNeeded(total types.Quantity, qty int) (types.Quantity, error) {
	needed, err := l.Needed(qty)
	if err != nil {
		return 0, err
	}
	sum, ok := total.Add(needed)
	if !ok {
		return 0, demandOverflow(l, qty)
	}
	return sum, nil
}

func demandOverflow(l RecipeLine, qty int) error {
	return apperror.NewValidation("quantity too large for recipe").
		WithDetail("ingredient", l.IngredientName).
		WithDetail("quantity", qty)
}

// IsEmpty reports a recipe without lines. Such a recipe cannot be sold.
func (r *Recipe) IsEmpty() bool {
	return r == nil || len(r.Lines) == 0
}

// IngredientIDs returns the distinct ingredient ids of the recipe.
func (r *Recipe) IngredientIDs() []id.ID {
	ids := make([]id.ID, 0, len(r.Lines))
	for _, l := range r.Lines {
		ids = append(ids, l.IngredientID)
	}
	return id.SortedUnique(ids)
}

// Validate implements entity.Validatable.
func (r *Recipe) Validate(_ context.Context) error {
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("recipe product is required").WithDetail("field", "productId")
	}
	seen := make(map[id.ID]struct{}, len(r.Lines))
	for i, l := range r.Lines {
		if l.QuantityPerUnit < types.MinRecipeQuantity {
			return apperror.NewValidation("quantity per unit must be at least 0.001").
				WithDetail("line", i).
				WithDetail("ingredientId", l.IngredientID)
		}
		if _, dup := seen[l.IngredientID]; dup {
			return apperror.NewValidation("ingredient appears twice in recipe").
				WithDetail("line", i).
				WithDetail("ingredientId", l.IngredientID)
		}
		seen[l.IngredientID] = struct{}{}
	}
	return nil
}

// ProductWithStock pairs a product with its derived stock.
type ProductWithStock struct {
	*Product
	CalculatedStock int64 `json:"calculatedStock"`
	HasRecipe       bool  `json:"hasRecipe"`
}
