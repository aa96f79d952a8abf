// Package availability answers "can N units of this product be sold now?".
// It only reads; nothing here mutates stock.
package availability

import (
	"context"
	"fmt"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/inventory"
)

// Reasons reported on a shortage.
const (
	ReasonInsufficientStock = "Insufficient stock"
	ReasonUnavailable       = "Marked as unavailable"
	ReasonMissingIngredient = "Ingredient not found"
	ReasonInactive          = "Ingredient inactive"
	ReasonMissingProduct    = "Product not found"
)

// Shortage itemizes one ingredient that cannot cover demand.
type Shortage struct {
	Product      string         `json:"product,omitempty"`
	Ingredient   string         `json:"ingredient"`
	IngredientID id.ID          `json:"ingredientId"`
	Needed       types.Quantity `json:"needed"`
	Available    types.Quantity `json:"available"`
	Shortage     types.Quantity `json:"shortage"`
	Unit         string         `json:"unit"`
	Reason       string         `json:"reason"`
}

// IsManualOverride reports a shortage caused by the availability flag rather
// than by stock level.
func (s Shortage) IsManualOverride() bool {
	return s.Reason == ReasonUnavailable
}

// Result is the outcome of a single-product check.
type Result struct {
	ProductID      id.ID      `json:"productId"`
	ProductName    string     `json:"productName"`
	Quantity       int        `json:"quantity"`
	Available      bool       `json:"available"`
	HasRecipe      bool       `json:"hasRecipe"`
	Shortages      []Shortage `json:"shortages"`
	TotalShortages int        `json:"totalShortages"`
	Error          string     `json:"error,omitempty"`
}

// Item is one (product, quantity) pair of a batch check.
type Item struct {
	ProductID id.ID `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// BatchResult is the outcome of an order-wide check.
type BatchResult struct {
	Available bool       `json:"available"`
	Shortages []Shortage `json:"shortages"`
	Items     []Result   `json:"items"`
}

// Checker evaluates recipe demand against current ingredient stock.
type Checker struct {
	products    catalog.ProductRepository
	recipes     catalog.RecipeRepository
	ingredients inventory.IngredientRepository
}

// NewChecker creates a new availability checker.
func NewChecker(products catalog.ProductRepository, recipes catalog.RecipeRepository, ingredients inventory.IngredientRepository) *Checker {
	return &Checker{
		products:    products,
		recipes:     recipes,
		ingredients: ingredients,
	}
}

// CheckAvailability reports whether quantity units of the product can be made
// from current stock. "Not available" is a normal result, not an error; errors
// are returned only for invalid input or storage failures.
func (c *Checker) CheckAvailability(ctx context.Context, productID id.ID, quantity int) (*Result, error) {
	if err := catalog.ValidateUnits(quantity); err != nil {
		return nil, err
	}

	product, err := c.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	res := &Result{
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		Shortages:   []Shortage{},
	}

	if !product.RequiresBOM {
		res.HasRecipe = true
		if product.Stock < quantity {
			res.Shortages = append(res.Shortages, Shortage{
				Ingredient: product.Name,
				Needed:     types.NewQuantityFromInt(int64(quantity)),
				Available:  types.NewQuantityFromInt(int64(product.Stock)),
				Shortage:   types.NewQuantityFromInt(int64(quantity - product.Stock)),
				Unit:       string(inventory.UnitPiece),
				Reason:     ReasonInsufficientStock,
			})
		}
		res.finish()
		return res, nil
	}

	recipe, err := c.recipes.GetByProductID(ctx, productID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	if recipe.IsEmpty() {
		res.Error = fmt.Sprintf("No recipe defined for %s", product.Name)
		return res, nil
	}
	res.HasRecipe = true

	ingredients, err := c.ingredients.GetByIDs(ctx, recipe.IngredientIDs())
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	res.Shortages, err = Evaluate(recipe, quantity, ingredients)
	if err != nil {
		return nil, err
	}
	res.finish()
	return res, nil
}

// CheckOrderAvailability runs CheckAvailability per item and unions the
// shortages, tagging each with its product. Shortages of different items on
// the same ingredient are reported independently, not netted. An unknown
// product is a shortage of its own line; the other lines are still checked.
func (c *Checker) CheckOrderAvailability(ctx context.Context, items []Item) (*BatchResult, error) {
	out := &BatchResult{Shortages: []Shortage{}, Items: make([]Result, 0, len(items))}

	for _, item := range items {
		res, err := c.CheckAvailability(ctx, item.ProductID, item.Quantity)
		if apperror.IsNotFound(err) {
			res = &Result{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Shortages: []Shortage{},
				Error:     ReasonMissingProduct,
			}
			err = nil
		}
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *res)

		name := res.ProductName
		if name == "" {
			name = fmt.Sprintf("Product #%s", item.ProductID)
		}
		if !res.HasRecipe {
			out.Shortages = append(out.Shortages, Shortage{
				Product: name,
				Reason:  res.Error,
			})
			continue
		}
		for _, s := range res.Shortages {
			s.Product = name
			out.Shortages = append(out.Shortages, s)
		}
	}

	out.Available = len(out.Shortages) == 0
	return out, nil
}

// Evaluate compares one recipe's demand for quantity units against the given
// ingredients. It is shared with the deduction engine so both paths report
// shortages identically.
func Evaluate(recipe *catalog.Recipe, quantity int, ingredients map[id.ID]*inventory.Ingredient) ([]Shortage, error) {
	shortages := []Shortage{}
	for _, line := range recipe.Lines {
		needed, err := line.Needed(quantity)
		if err != nil {
			return nil, err
		}
		ing, ok := ingredients[line.IngredientID]
		if s, short := ShortageFor(ing, ok, line, needed); short {
			shortages = append(shortages, s)
		}
	}
	return shortages, nil
}

// ShortageFor compares needed against a single ingredient.
func ShortageFor(ing *inventory.Ingredient, found bool, line catalog.RecipeLine, needed types.Quantity) (Shortage, bool) {
	switch {
	case !found:
		return Shortage{
			Ingredient:   line.IngredientName,
			IngredientID: line.IngredientID,
			Needed:       needed,
			Shortage:     needed,
			Unit:         line.Unit,
			Reason:       ReasonMissingIngredient,
		}, true
	case !ing.IsActive:
		return Shortage{
			Ingredient:   ing.Name,
			IngredientID: ing.ID,
			Needed:       needed,
			Shortage:     needed,
			Unit:         string(ing.Unit),
			Reason:       ReasonInactive,
		}, true
	case !ing.IsAvailable:
		return Shortage{
			Ingredient:   ing.Name,
			IngredientID: ing.ID,
			Needed:       needed,
			Available:    0,
			Shortage:     needed,
			Unit:         string(ing.Unit),
			Reason:       ReasonUnavailable,
		}, true
	case ing.CurrentStock < needed:
		return Shortage{
			Ingredient:   ing.Name,
			IngredientID: ing.ID,
			Needed:       needed,
			Available:    ing.CurrentStock,
			Shortage:     needed - ing.CurrentStock,
			Unit:         string(ing.Unit),
			Reason:       ReasonInsufficientStock,
		}, true
	}
	return Shortage{}, false
}

func (r *Result) finish() {
	r.TotalShortages = len(r.Shortages)
	r.Available = r.HasRecipe && r.TotalShortages == 0
}
