// Package order_repo provides PostgreSQL implementations for orders and payments.
package order_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/orders"
	"cafepos/internal/infrastructure/storage/postgres"
)

var orderColumns = []string{
	"id", "order_number", "status", "total_amount", "customer_name",
	"table_number", "notes", "created_by", "created_at", "updated_at",
}

var itemColumns = []string{
	"id", "order_id", "product_id", "product_name", "product_price",
	"quantity", "subtotal", "created_at",
}

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	txm      *postgres.TxManager
	payments *PaymentRepo
}

var _ orders.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates an order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{txm: txm, payments: NewPaymentRepo(txm)}
}

// Create inserts the order header and items in one round trip.
func (r *OrderRepo) Create(ctx context.Context, order *orders.Order) error {
	if id.IsNil(order.ID) {
		order.ID = id.New()
	}
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		batch, err := buildOrderInsert(order)
		if err != nil {
			return err
		}
		if err := r.txm.ExecBatch(ctx, batch); err != nil {
			if constraint, dup := postgres.UniqueViolation(err); dup {
				return apperror.NewDuplicate("order", "order_number", order.Number).
					WithDetail("constraint", constraint)
			}
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
}

func buildOrderInsert(order *orders.Order) (*postgres.Batch, error) {
	batch := &postgres.Batch{}
	err := batch.QueueBuilder(postgres.Builder().
		Insert("orders").
		Columns(orderColumns...).
		Values(order.ID, order.Number, order.Status, order.TotalAmount, order.CustomerName,
			order.TableNumber, order.Notes, order.CreatedBy, order.CreatedAt, order.UpdatedAt))
	if err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return batch, nil
	}

	items := postgres.Builder().Insert("order_items").Columns(itemColumns...)
	for i := range order.Items {
		it := &order.Items[i]
		if id.IsNil(it.ID) {
			it.ID = id.New()
		}
		it.OrderID = order.ID
		items = items.Values(it.ID, it.OrderID, it.ProductID, it.ProductName, it.ProductPrice,
			it.Quantity, it.Subtotal, it.CreatedAt)
	}
	if err := batch.QueueBuilder(items); err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.get(ctx, orderID, false)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	if _, err := r.txm.RequireTx(ctx); err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return r.get(ctx, orderID, true)
}

func (r *OrderRepo) get(ctx context.Context, orderID id.ID, lock bool) (*orders.Order, error) {
	q := r.txm.GetQuerier(ctx)

	sel := postgres.Builder().Select(orderColumns...).From("orders").Where("id = ?", orderID)
	if lock {
		sel = sel.Suffix("FOR UPDATE")
	}
	sql, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var order orders.Order
	if err := pgxscan.Get(ctx, q, &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	sql, args, err = postgres.Builder().
		Select(itemColumns...).
		From("order_items").
		Where("order_id = ?", orderID).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, &order.Items, sql, args...); err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	payment, err := r.payments.GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		order.Payment = payment
	case !apperror.IsNotFound(err):
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status orders.Status) error {
	sql, args, err := postgres.Builder().
		Update("orders").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", orderID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("order", orderID)
	}
	return nil
}

func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, error) {
	sql, args, err := buildOrderList(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*orders.Order
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func buildOrderList(filter orders.ListFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(orderColumns...).From("orders")
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	return postgres.Paginate(q.OrderBy("created_at DESC"), filter.Limit, filter.Offset)
}

func (r *OrderRepo) ExpirePending(ctx context.Context, before time.Time) ([]id.ID, error) {
	sql, args, err := buildExpirePending(before, time.Now().UTC()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("expire pending orders: %w", err)
	}
	return id.SortedUnique(ids), nil
}

func buildExpirePending(before, now time.Time) squirrel.UpdateBuilder {
	return postgres.Builder().
		Update("orders").
		Set("status", string(orders.StatusExpired)).
		Set("updated_at", now).
		Where(squirrel.Eq{"status": string(orders.StatusPending)}).
		Where(squirrel.Lt{"created_at": before}).
		Suffix("RETURNING id")
}
