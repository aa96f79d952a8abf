// Package catalog_repo provides PostgreSQL implementations for products and recipes.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/infrastructure/storage/postgres"
)

const productTable = "products"

var productColumns = []string{
	"id", "name", "category", "price", "stock", "threshold",
	"requires_bom", "is_archived", "created_at", "updated_at",
}

// ProductRepo implements catalog.ProductRepository.
type ProductRepo struct {
	txm *postgres.TxManager
}

var _ catalog.ProductRepository = (*ProductRepo)(nil)

// NewProductRepo creates a product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{txm: txm}
}

func selectProducts() squirrel.SelectBuilder {
	return postgres.Builder().Select(productColumns...).From(productTable)
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	sql, args, err := selectProducts().Where("id = ?", productID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p catalog.Product
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) GetByIDs(ctx context.Context, ids []id.ID) (map[id.ID]*catalog.Product, error) {
	out := make(map[id.ID]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	sql, args, err := selectProducts().Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*catalog.Product
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepo) List(ctx context.Context, filter catalog.ProductFilter) ([]*catalog.Product, error) {
	sql, args, err := buildProductList(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*catalog.Product
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func buildProductList(filter catalog.ProductFilter) squirrel.SelectBuilder {
	q := selectProducts()
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where(squirrel.ILike{"name": "%" + s + "%"})
	}
	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	if !filter.IncludeArchived {
		q = q.Where(squirrel.Eq{"is_archived": false})
	}
	return postgres.Paginate(q.OrderBy("category", "name"), filter.Limit, filter.Offset)
}

func (r *ProductRepo) Create(ctx context.Context, p *catalog.Product) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	sql, args, err := postgres.Builder().
		Insert(productTable).
		Columns(productColumns...).
		Values(p.ID, p.Name, p.Category, p.Price, p.Stock, p.Threshold,
			p.RequiresBOM, p.IsArchived, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("product", "id", p.ID.String())
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// DecrementStock is a single conditional UPDATE, so concurrent sales of the
// last unit cannot both succeed.
func (r *ProductRepo) DecrementStock(ctx context.Context, productID id.ID, qty int) (bool, error) {
	sql, args, err := buildDecrementStock(productID, qty, time.Now().UTC()).ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("decrement product stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	if _, err := r.GetByID(ctx, productID); err != nil {
		return false, err
	}
	return false, nil
}

func buildDecrementStock(productID id.ID, qty int, now time.Time) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update(productTable).
		Set("stock", squirrel.Expr("stock - ?", qty)).
		Set("updated_at", now).
		Where("id = ?", productID).
		Where("stock >= ?", qty)
}
