package memory

import (
	"context"

	"cafepos/internal/core/types"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/inventory"
)

// Use pairs an ingredient with a per-unit recipe quantity for AddProduct.
type Use struct {
	Ingredient *inventory.Ingredient
	PerUnit    types.Quantity
}

// AddIngredient stores a new active, available ingredient.
func (s *Store) AddIngredient(ctx context.Context, name string, unit inventory.Unit, stock, minStock types.Quantity) (*inventory.Ingredient, error) {
	ing := inventory.NewIngredient(name, unit, stock, minStock)
	if err := ing.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.Ingredients().Create(ctx, ing); err != nil {
		return nil, err
	}
	return ing, nil
}

// AddProduct stores a recipe-backed product. With no uses the product has no
// recipe at all.
func (s *Store) AddProduct(ctx context.Context, name string, price types.Money, uses ...Use) (*catalog.Product, error) {
	p := catalog.NewProduct(name, "", price)
	var recipe *catalog.Recipe
	if len(uses) > 0 {
		recipe = &catalog.Recipe{Name: name}
		for _, u := range uses {
			recipe.Lines = append(recipe.Lines, catalog.RecipeLine{
				IngredientID:    u.Ingredient.ID,
				QuantityPerUnit: u.PerUnit,
			})
		}
	}
	svc := catalog.NewService(s, s.Products(), s.Recipes(), s.Ingredients())
	if err := svc.CreateProduct(ctx, p, recipe); err != nil {
		return nil, err
	}
	return p, nil
}

// AddSimpleProduct stores a product that tracks its own unit stock.
func (s *Store) AddSimpleProduct(ctx context.Context, name string, price types.Money, stock int) (*catalog.Product, error) {
	p := catalog.NewProduct(name, "", price)
	p.RequiresBOM = false
	p.Stock = stock
	svc := catalog.NewService(s, s.Products(), s.Recipes(), s.Ingredients())
	if err := svc.CreateProduct(ctx, p, nil); err != nil {
		return nil, err
	}
	return p, nil
}
