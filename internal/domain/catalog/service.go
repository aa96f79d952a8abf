package catalog

import (
	"context"
	"fmt"
	"math"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/domain/inventory"
	"cafepos/pkg/logger"
)

// Service provides product and recipe lookups and the derived stock calculation.
type Service struct {
	txm         tx.Manager
	products    ProductRepository
	recipes     RecipeRepository
	ingredients inventory.IngredientRepository
}

// NewService creates a new catalog service.
func NewService(txm tx.Manager, products ProductRepository, recipes RecipeRepository, ingredients inventory.IngredientRepository) *Service {
	return &Service{
		txm:         txm,
		products:    products,
		recipes:     recipes,
		ingredients: ingredients,
	}
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, productID id.ID) (*Product, error) {
	return s.products.GetByID(ctx, productID)
}

// GetRecipe returns the product's recipe or a NotFound error.
// Recipes are never created implicitly.
func (s *Service) GetRecipe(ctx context.Context, productID id.ID) (*Recipe, error) {
	return s.recipes.GetByProductID(ctx, productID)
}

// CreateProduct stores a product and, for recipe-backed products, its recipe
// in one transaction.
func (s *Service) CreateProduct(ctx context.Context, product *Product, recipe *Recipe) error {
	if err := product.Validate(ctx); err != nil {
		return err
	}
	if recipe != nil {
		recipe.ProductID = product.ID
		recipe.ProductName = product.Name
		if id.IsNil(recipe.ID) {
			recipe.ID = id.New()
		}
		if err := recipe.Validate(ctx); err != nil {
			return err
		}
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, product); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if recipe == nil {
			return nil
		}
		if err := s.recipes.Create(ctx, recipe); err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "product created", "product_id", product.ID, "name", product.Name)
	return nil
}

// CalculatedStock returns how many units of the product can be sold now.
//
// Simple-stock products return their counter. Recipe-backed products return
// min(floor(current_stock / quantity_per_unit)) over the recipe lines; a
// missing or empty recipe yields 0.
func (s *Service) CalculatedStock(ctx context.Context, product *Product) (int64, error) {
	if !product.RequiresBOM {
		return int64(product.Stock), nil
	}

	recipe, err := s.recipes.GetByProductID(ctx, product.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if recipe.IsEmpty() {
		return 0, nil
	}

	ingredients, err := s.ingredients.GetByIDs(ctx, recipe.IngredientIDs())
	if err != nil {
		return 0, fmt.Errorf("load recipe ingredients: %w", err)
	}
	return bottleneck(recipe, ingredients), nil
}

// GetProductWithStock returns one product with its derived stock.
func (s *Service) GetProductWithStock(ctx context.Context, productID id.ID) (ProductWithStock, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return ProductWithStock{}, err
	}
	row := ProductWithStock{Product: product}
	if !product.RequiresBOM {
		row.CalculatedStock = int64(product.Stock)
		return row, nil
	}

	recipe, err := s.recipes.GetByProductID(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return row, nil
		}
		return ProductWithStock{}, err
	}
	if row.HasRecipe = !recipe.IsEmpty(); !row.HasRecipe {
		return row, nil
	}

	ingredients, err := s.ingredients.GetByIDs(ctx, recipe.IngredientIDs())
	if err != nil {
		return ProductWithStock{}, fmt.Errorf("load recipe ingredients: %w", err)
	}
	row.CalculatedStock = bottleneck(recipe, ingredients)
	return row, nil
}

// ListProducts returns products with their derived stock.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]ProductWithStock, error) {
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	productIDs := make([]id.ID, 0, len(products))
	for _, p := range products {
		if p.RequiresBOM {
			productIDs = append(productIDs, p.ID)
		}
	}
	recipes, err := s.recipes.GetByProductIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}

	var ingredientIDs []id.ID
	for _, r := range recipes {
		ingredientIDs = append(ingredientIDs, r.IngredientIDs()...)
	}
	ingredients, err := s.ingredients.GetByIDs(ctx, id.SortedUnique(ingredientIDs))
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}

	out := make([]ProductWithStock, 0, len(products))
	for _, p := range products {
		row := ProductWithStock{Product: p}
		switch {
		case !p.RequiresBOM:
			row.CalculatedStock = int64(p.Stock)
		default:
			r, ok := recipes[p.ID]
			row.HasRecipe = ok && !r.IsEmpty()
			if row.HasRecipe {
				row.CalculatedStock = bottleneck(r, ingredients)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// bottleneck computes the sellable units for a non-empty recipe.
// Lines with zero quantity are skipped; an ingredient missing from the map
// counts as zero stock.
func bottleneck(recipe *Recipe, ingredients map[id.ID]*inventory.Ingredient) int64 {
	best := int64(math.MaxInt64)
	counted := false
	for _, line := range recipe.Lines {
		if !line.QuantityPerUnit.IsPositive() {
			continue
		}
		counted = true
		ing, ok := ingredients[line.IngredientID]
		if !ok {
			return 0
		}
		if units := ing.CurrentStock.Units(line.QuantityPerUnit); units < best {
			best = units
		}
	}
	if !counted {
		return 0
	}
	return best
}
