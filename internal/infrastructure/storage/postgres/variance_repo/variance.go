// Package variance_repo provides PostgreSQL repositories for waste logs,
// physical counts and variance records.
package variance_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/variance"
	"cafepos/internal/infrastructure/storage/postgres"
)

var wasteColumns = []string{
	"id", "ingredient_id", "quantity", "waste_type", "reason", "notes",
	"reported_by", "waste_date", "cost_impact",
}

var countColumns = []string{
	"id", "ingredient_id", "physical_quantity", "theoretical_quantity", "variance",
	"variance_percentage", "within_tolerance", "notes", "counted_by", "counted_at",
}

var recordColumns = []string{
	"id", "ingredient_id", "period_start", "period_end", "theoretical_used", "actual_waste",
	"variance", "variance_percentage", "within_tolerance", "created_at",
}

// WasteRepo implements variance.WasteRepository.
type WasteRepo struct {
	txm *postgres.TxManager
}

var _ variance.WasteRepository = (*WasteRepo)(nil)

// NewWasteRepo creates a waste log repository.
func NewWasteRepo(txm *postgres.TxManager) *WasteRepo {
	return &WasteRepo{txm: txm}
}

func (r *WasteRepo) Create(ctx context.Context, w *variance.WasteLog) error {
	if id.IsNil(w.ID) {
		w.ID = id.New()
	}
	// cost_impact keeps its column default of zero.
	sql, args, err := postgres.Builder().
		Insert("waste_logs").
		Columns(wasteColumns[:len(wasteColumns)-1]...).
		Values(w.ID, w.IngredientID, w.Quantity, w.WasteType, w.Reason, w.Notes, w.ReportedBy, w.WasteDate).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert waste log: %w", err)
	}
	return nil
}

func (r *WasteRepo) List(ctx context.Context, filter variance.WasteFilter) ([]variance.WasteLog, error) {
	q := wasteWhere(postgres.Builder().Select(wasteColumns...).From("waste_logs"), filter).
		OrderBy("waste_date DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []variance.WasteLog
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list waste logs: %w", err)
	}
	return out, nil
}

type wasteTotal struct {
	WasteType variance.WasteType `db:"waste_type"`
	Count     int                `db:"count"`
	Quantity  int64              `db:"quantity"`
}

func (r *WasteRepo) Totals(ctx context.Context, filter variance.WasteFilter) (map[variance.WasteType]variance.Totals, error) {
	sql, args, err := buildWasteTotals(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []wasteTotal
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("waste totals: %w", err)
	}
	out := make(map[variance.WasteType]variance.Totals, len(rows))
	for _, row := range rows {
		out[row.WasteType] = variance.Totals{
			Count:    row.Count,
			Quantity: types.NewQuantityFromInt64Scaled(row.Quantity),
		}
	}
	return out, nil
}

func buildWasteTotals(filter variance.WasteFilter) squirrel.SelectBuilder {
	return wasteWhere(
		postgres.Builder().
			Select("waste_type", "COUNT(*)::int AS count", "SUM(quantity)::bigint AS quantity").
			From("waste_logs"),
		filter,
	).GroupBy("waste_type")
}

func wasteWhere(q squirrel.SelectBuilder, filter variance.WasteFilter) squirrel.SelectBuilder {
	if filter.IngredientID != nil {
		q = q.Where("ingredient_id = ?", *filter.IngredientID)
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"waste_type": string(*filter.Type)})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"waste_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"waste_date": *filter.To})
	}
	return q
}

// CountRepo implements variance.CountRepository.
type CountRepo struct {
	txm *postgres.TxManager
}

var _ variance.CountRepository = (*CountRepo)(nil)

// NewCountRepo creates a physical count repository.
func NewCountRepo(txm *postgres.TxManager) *CountRepo {
	return &CountRepo{txm: txm}
}

func (r *CountRepo) Create(ctx context.Context, c *variance.PhysicalCount) error {
	if id.IsNil(c.ID) {
		c.ID = id.New()
	}
	sql, args, err := postgres.Builder().
		Insert("physical_counts").
		Columns(countColumns...).
		Values(c.ID, c.IngredientID, c.PhysicalQuantity, c.TheoreticalQuantity, c.Variance,
			c.VariancePercentage, c.WithinTolerance, c.Notes, c.CountedBy, c.CountedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert physical count: %w", err)
	}
	return nil
}

func (r *CountRepo) ListByIngredient(ctx context.Context, ingredientID id.ID, limit int) ([]variance.PhysicalCount, error) {
	q := postgres.Builder().
		Select(countColumns...).
		From("physical_counts").
		Where("ingredient_id = ?", ingredientID).
		OrderBy("counted_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []variance.PhysicalCount
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list physical counts: %w", err)
	}
	return out, nil
}

// RecordRepo implements variance.RecordRepository.
type RecordRepo struct {
	txm *postgres.TxManager
}

var _ variance.RecordRepository = (*RecordRepo)(nil)

// NewRecordRepo creates a variance record repository.
func NewRecordRepo(txm *postgres.TxManager) *RecordRepo {
	return &RecordRepo{txm: txm}
}

func (r *RecordRepo) Create(ctx context.Context, rec *variance.Record) error {
	if id.IsNil(rec.ID) {
		rec.ID = id.New()
	}
	sql, args, err := postgres.Builder().
		Insert("variance_records").
		Columns(recordColumns...).
		Values(rec.ID, rec.IngredientID, rec.PeriodStart, rec.PeriodEnd, rec.TheoreticalUsed,
			rec.ActualWaste, rec.Variance, rec.VariancePercentage, rec.WithinTolerance, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert variance record: %w", err)
	}
	return nil
}

func (r *RecordRepo) ListSince(ctx context.Context, since time.Time) ([]variance.Record, error) {
	sql, args, err := postgres.Builder().
		Select(recordColumns...).
		From("variance_records").
		Where(squirrel.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []variance.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list variance records: %w", err)
	}
	return out, nil
}
