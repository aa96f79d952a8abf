package order_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/forecast"
	"cafepos/internal/domain/orders"
	"cafepos/internal/infrastructure/storage/postgres"
)

var paymentColumns = []string{
	"id", "order_id", "method", "status", "amount", "reference_number",
	"processed_by", "created_at", "updated_at",
}

// PaymentRepo implements orders.PaymentRepository and forecast.SalesSource.
type PaymentRepo struct {
	txm *postgres.TxManager
}

var (
	_ orders.PaymentRepository = (*PaymentRepo)(nil)
	_ forecast.SalesSource     = (*PaymentRepo)(nil)
)

// NewPaymentRepo creates a payment repository.
func NewPaymentRepo(txm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{txm: txm}
}

func (r *PaymentRepo) Create(ctx context.Context, p *orders.Payment) error {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	sql, args, err := postgres.Builder().
		Insert("payments").
		Columns(paymentColumns...).
		Values(p.ID, p.OrderID, p.Method, p.Status, p.Amount, p.ReferenceNumber,
			p.ProcessedBy, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, dup := postgres.UniqueViolation(err); dup {
			return apperror.NewDuplicate("payment", "order_id", p.OrderID.String())
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID id.ID) (*orders.Payment, error) {
	sql, args, err := postgres.Builder().
		Select(paymentColumns...).
		From("payments").
		Where("order_id = ?", orderID).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p orders.Payment
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", orderID)
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepo) Update(ctx context.Context, p *orders.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	sql, args, err := postgres.Builder().
		Update("payments").
		Set("method", p.Method).
		Set("status", p.Status).
		Set("amount", p.Amount).
		Set("reference_number", p.ReferenceNumber).
		Set("processed_by", p.ProcessedBy).
		Set("updated_at", p.UpdatedAt).
		Where("order_id = ?", p.OrderID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("payment", p.OrderID)
	}
	return nil
}

func (r *PaymentRepo) FailPending(ctx context.Context, orderIDs []id.ID) error {
	if len(orderIDs) == 0 {
		return nil
	}
	sql, args, err := postgres.Builder().
		Update("payments").
		Set("status", string(orders.PaymentFailed)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"order_id": orderIDs}).
		Where(squirrel.Eq{"status": string(orders.PaymentPending)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("fail pending payments: %w", err)
	}
	return nil
}

// DailyRevenue sums SUCCESS payments per UTC day in [from, to).
func (r *PaymentRepo) DailyRevenue(ctx context.Context, from, to time.Time) ([]forecast.DailyRevenue, error) {
	sql, args, err := buildDailyRevenue(from, to).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []forecast.DailyRevenue
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("daily revenue: %w", err)
	}
	for i := range out {
		d := out[i].Day
		out[i].Day = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	return out, nil
}

func buildDailyRevenue(from, to time.Time) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("date_trunc('day', created_at AT TIME ZONE 'UTC') AS day", "SUM(amount) AS total").
		From("payments").
		Where(squirrel.Eq{"status": string(orders.PaymentSuccess)}).
		Where(squirrel.GtOrEq{"created_at": from}).
		Where(squirrel.Lt{"created_at": to}).
		GroupBy("1").
		OrderBy("1")
}
