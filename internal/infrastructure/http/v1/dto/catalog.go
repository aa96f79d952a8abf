package dto

import (
	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
)

// RecipeLineRequest is one ingredient of a recipe.
type RecipeLineRequest struct {
	IngredientID    string         `json:"ingredientId" binding:"required,uuid"`
	QuantityPerUnit types.Quantity `json:"quantityPerUnit"`
}

// RecipeRequest is a bill of materials.
type RecipeRequest struct {
	Name  string              `json:"name"`
	Lines []RecipeLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CreateProductRequest creates a product, optionally with its recipe.
type CreateProductRequest struct {
	Name        string         `json:"name" binding:"required"`
	Category    string         `json:"category"`
	Price       types.Money    `json:"price"`
	Stock       int            `json:"stock" binding:"min=0"`
	Threshold   int            `json:"threshold" binding:"min=0"`
	RequiresBOM *bool          `json:"requiresBom"`
	Recipe      *RecipeRequest `json:"recipe"`
}

// ToEntity converts the request. A product requires a BOM unless told otherwise.
func (r *CreateProductRequest) ToEntity() (*catalog.Product, *catalog.Recipe, error) {
	product := catalog.NewProduct(r.Name, r.Category, r.Price)
	product.Stock = r.Stock
	product.Threshold = r.Threshold
	if r.RequiresBOM != nil {
		product.RequiresBOM = *r.RequiresBOM
	}

	if r.Recipe == nil {
		return product, nil, nil
	}
	if !product.RequiresBOM {
		return nil, nil, apperror.NewValidation("recipe given for a simple-stock product").WithDetail("field", "recipe")
	}

	recipe := &catalog.Recipe{Name: r.Recipe.Name}
	if recipe.Name == "" {
		recipe.Name = r.Name
	}
	for i, l := range r.Recipe.Lines {
		ingredientID, err := id.Parse(l.IngredientID)
		if err != nil {
			return nil, nil, apperror.NewValidation("invalid ingredient id").WithDetail("line", i)
		}
		recipe.Lines = append(recipe.Lines, catalog.RecipeLine{
			IngredientID:    ingredientID,
			QuantityPerUnit: l.QuantityPerUnit,
		})
	}
	return product, recipe, nil
}

// ProductListQuery filters GET /products.
type ProductListQuery struct {
	PaginationRequest
	Search          string `form:"search"`
	Category        string `form:"category"`
	IncludeArchived bool   `form:"includeArchived"`
}

// ToFilter converts to the domain filter.
func (q *ProductListQuery) ToFilter() catalog.ProductFilter {
	q.Defaults()
	return catalog.ProductFilter{
		Search:          q.Search,
		Category:        q.Category,
		IncludeArchived: q.IncludeArchived,
		Limit:           q.Limit,
		Offset:          q.Offset,
	}
}

// ProductResponse is a product with its sellable stock.
type ProductResponse struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Price           types.Money `json:"price"`
	Stock           int         `json:"stock"`
	Threshold       int         `json:"threshold"`
	RequiresBOM     bool        `json:"requiresBom"`
	IsArchived      bool        `json:"isArchived"`
	CalculatedStock int64       `json:"calculatedStock"`
	HasRecipe       bool        `json:"hasRecipe"`
	entity.Timestamps
}

// FromProduct creates the response.
func FromProduct(p catalog.ProductWithStock) ProductResponse {
	return ProductResponse{
		ID:              p.ID.String(),
		Name:            p.Name,
		Category:        p.Category,
		Price:           p.Price,
		Stock:           p.Stock,
		Threshold:       p.Threshold,
		RequiresBOM:     p.RequiresBOM,
		IsArchived:      p.IsArchived,
		CalculatedStock: p.CalculatedStock,
		HasRecipe:       p.HasRecipe,
		Timestamps:      p.Timestamps,
	}
}

// AvailabilityItemRequest is one line of a batch availability check.
type AvailabilityItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=2147483647"`
}

// CheckAvailabilityRequest is the body of POST /availability/check.
type CheckAvailabilityRequest struct {
	Items []AvailabilityItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToItems converts to checker items.
func (r *CheckAvailabilityRequest) ToItems() ([]availability.Item, error) {
	items := make([]availability.Item, 0, len(r.Items))
	for i, it := range r.Items {
		productID, err := id.Parse(it.ProductID)
		if err != nil {
			return nil, apperror.NewValidation("invalid product id").WithDetail("item", i)
		}
		items = append(items, availability.Item{ProductID: productID, Quantity: it.Quantity})
	}
	return items, nil
}
