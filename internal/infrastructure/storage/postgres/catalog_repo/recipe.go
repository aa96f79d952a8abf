package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/infrastructure/storage/postgres"
)

// RecipeRepo implements catalog.RecipeRepository over recipes and recipe_ingredients.
type RecipeRepo struct {
	txm *postgres.TxManager
}

var _ catalog.RecipeRepository = (*RecipeRepo)(nil)

// NewRecipeRepo creates a recipe repository.
func NewRecipeRepo(txm *postgres.TxManager) *RecipeRepo {
	return &RecipeRepo{txm: txm}
}

func (r *RecipeRepo) GetByProductID(ctx context.Context, productID id.ID) (*catalog.Recipe, error) {
	recipes, err := r.GetByProductIDs(ctx, []id.ID{productID})
	if err != nil {
		return nil, err
	}
	recipe, ok := recipes[productID]
	if !ok {
		return nil, apperror.NewNotFound("recipe", productID)
	}
	return recipe, nil
}

func (r *RecipeRepo) GetByProductIDs(ctx context.Context, productIDs []id.ID) (map[id.ID]*catalog.Recipe, error) {
	out := make(map[id.ID]*catalog.Recipe, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	q := r.txm.GetQuerier(ctx)

	sql, args, err := buildRecipeHeaders(productIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var headers []*catalog.Recipe
	if err := pgxscan.Select(ctx, q, &headers, sql, args...); err != nil {
		return nil, fmt.Errorf("select recipes: %w", err)
	}
	if len(headers) == 0 {
		return out, nil
	}

	byRecipe := make(map[id.ID]*catalog.Recipe, len(headers))
	recipeIDs := make([]id.ID, 0, len(headers))
	for _, h := range headers {
		byRecipe[h.ID] = h
		recipeIDs = append(recipeIDs, h.ID)
		out[h.ProductID] = h
	}

	sql, args, err = buildRecipeLines(recipeIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var lines []catalog.RecipeLine
	if err := pgxscan.Select(ctx, q, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select recipe lines: %w", err)
	}
	for _, l := range lines {
		if h, ok := byRecipe[l.RecipeID]; ok {
			h.Lines = append(h.Lines, l)
		}
	}
	return out, nil
}

func buildRecipeHeaders(productIDs []id.ID) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("r.id", "r.product_id", "p.name AS product_name", "r.name").
		From("recipes r").
		Join("products p ON p.id = r.product_id").
		Where(squirrel.Eq{"r.product_id": productIDs})
}

func buildRecipeLines(recipeIDs []id.ID) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("ri.recipe_id", "ri.ingredient_id", "i.name AS ingredient_name", "i.unit", "ri.quantity_per_unit").
		From("recipe_ingredients ri").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Where(squirrel.Eq{"ri.recipe_id": recipeIDs}).
		OrderBy("i.name")
}

// Create inserts the recipe and its lines, then reloads ingredient names and units.
func (r *RecipeRepo) Create(ctx context.Context, recipe *catalog.Recipe) error {
	if id.IsNil(recipe.ID) {
		recipe.ID = id.New()
	}
	q := r.txm.GetQuerier(ctx)

	sql, args, err := postgres.Builder().
		Insert("recipes").
		Columns("id", "product_id", "name").
		Values(recipe.ID, recipe.ProductID, recipe.Name).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("recipe", "product_id", recipe.ProductID.String())
		}
		return fmt.Errorf("insert recipe: %w", err)
	}

	if len(recipe.Lines) > 0 {
		sql, args, err = buildRecipeLineInsert(recipe).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert recipe lines: %w", err)
		}
	}

	stored, err := r.GetByProductID(ctx, recipe.ProductID)
	if err != nil {
		return err
	}
	recipe.ProductName = stored.ProductName
	recipe.Lines = stored.Lines
	return nil
}

func buildRecipeLineInsert(recipe *catalog.Recipe) squirrel.InsertBuilder {
	q := postgres.Builder().
		Insert("recipe_ingredients").
		Columns("recipe_id", "ingredient_id", "quantity_per_unit")
	for _, l := range recipe.Lines {
		q = q.Values(recipe.ID, l.IngredientID, int64(l.QuantityPerUnit))
	}
	return q
}
