// Package inventory_repo provides PostgreSQL implementations of the
// ingredient and stock ledger repositories.
package inventory_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/infrastructure/storage/postgres"
)

const ingredientTable = "ingredients"

var ingredientColumns = []string{
	"id", "name", "unit", "current_stock", "min_stock", "variance_allowance",
	"is_active", "is_available", "created_at", "updated_at",
}

// IngredientRepo implements inventory.IngredientRepository.
type IngredientRepo struct {
	txm *postgres.TxManager
}

var _ inventory.IngredientRepository = (*IngredientRepo)(nil)

// NewIngredientRepo creates an ingredient repository.
func NewIngredientRepo(txm *postgres.TxManager) *IngredientRepo {
	return &IngredientRepo{txm: txm}
}

func selectIngredients() squirrel.SelectBuilder {
	return postgres.Builder().Select(ingredientColumns...).From(ingredientTable)
}

func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*inventory.Ingredient, error) {
	sql, args, err := selectIngredients().Where("id = ?", ingredientID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ing inventory.Ingredient
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &ing, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ingredient", ingredientID)
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return &ing, nil
}

func (r *IngredientRepo) GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*inventory.Ingredient, error) {
	if len(ids) == 0 {
		return map[id.ID]*inventory.Ingredient{}, nil
	}
	return r.selectMap(ctx, selectIngredients().Where(squirrel.Eq{"id": ids}))
}

// LockForUpdate takes row locks in ascending id order so two transactions
// touching overlapping ingredients always queue instead of deadlocking.
func (r *IngredientRepo) LockForUpdate(ctx context.Context, ids []id.ID) (map[id.ID]*inventory.Ingredient, error) {
	if _, err := r.txm.RequireTx(ctx); err != nil {
		return nil, fmt.Errorf("lock ingredients: %w", err)
	}
	if len(ids) == 0 {
		return map[id.ID]*inventory.Ingredient{}, nil
	}
	return r.selectMap(ctx, buildLockIngredients(ids))
}

func buildLockIngredients(ids []id.ID) squirrel.SelectBuilder {
	return selectIngredients().
		Where(squirrel.Eq{"id": id.SortedUnique(ids)}).
		OrderBy("id").
		Suffix("FOR UPDATE")
}

func (r *IngredientRepo) selectMap(ctx context.Context, q squirrel.SelectBuilder) (map[id.ID]*inventory.Ingredient, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*inventory.Ingredient
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select ingredients: %w", err)
	}

	out := make(map[id.ID]*inventory.Ingredient, len(rows))
	for _, ing := range rows {
		out[ing.ID] = ing
	}
	return out, nil
}

func (r *IngredientRepo) List(ctx context.Context, filter inventory.ListFilter) ([]*inventory.Ingredient, error) {
	sql, args, err := buildIngredientList(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*inventory.Ingredient
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return out, nil
}

func buildIngredientList(filter inventory.ListFilter) squirrel.SelectBuilder {
	q := selectIngredients()
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where(squirrel.ILike{"name": "%" + s + "%"})
	}
	if filter.OnlyActive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if filter.OnlyLow {
		q = q.Where("current_stock < min_stock")
	}
	if filter.Available != nil {
		q = q.Where(squirrel.Eq{"is_available": *filter.Available})
	}
	return postgres.Paginate(q.OrderBy("name"), filter.Limit, filter.Offset)
}

func (r *IngredientRepo) ListLowStock(ctx context.Context) ([]*inventory.Ingredient, error) {
	sql, args, err := selectIngredients().
		Where(squirrel.Eq{"is_active": true}).
		Where("current_stock < min_stock").
		OrderBy("current_stock", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*inventory.Ingredient
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return out, nil
}

func (r *IngredientRepo) Create(ctx context.Context, ing *inventory.Ingredient) error {
	if id.IsNil(ing.ID) {
		ing.ID = id.New()
	}
	sql, args, err := postgres.Builder().
		Insert(ingredientTable).
		Columns(ingredientColumns...).
		Values(ing.ID, ing.Name, ing.Unit, ing.CurrentStock, ing.MinStock, ing.VarianceAllowance,
			ing.IsActive, ing.IsAvailable, ing.CreatedAt, ing.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("ingredient", "name", ing.Name)
		}
		return fmt.Errorf("insert ingredient: %w", err)
	}
	return nil
}

// UpdateStock relies on the current_stock >= 0 check constraint as the last
// line of defence; callers validate before writing.
func (r *IngredientRepo) UpdateStock(ctx context.Context, ingredientID id.ID, stock types.Quantity) error {
	if stock.IsNegative() {
		return fmt.Errorf("ingredient %s: current_stock cannot be negative", ingredientID)
	}
	return r.update(ctx, ingredientID, "current_stock", stock)
}

func (r *IngredientRepo) SetAvailability(ctx context.Context, ingredientID id.ID, available bool) error {
	return r.update(ctx, ingredientID, "is_available", available)
}

func (r *IngredientRepo) update(ctx context.Context, ingredientID id.ID, column string, value any) error {
	sql, args, err := postgres.Builder().
		Update(ingredientTable).
		Set(column, value).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", ingredientID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.CheckViolation(err) {
			return fmt.Errorf("ingredient %s: %s violates a check constraint: %w", ingredientID, column, err)
		}
		return fmt.Errorf("update ingredient %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("ingredient", ingredientID)
	}
	return nil
}
