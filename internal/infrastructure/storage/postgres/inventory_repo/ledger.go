package inventory_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/infrastructure/storage/postgres"
)

const ledgerTable = "stock_transactions"

// unit_cost is left to its column default: costing is not tracked.
var ledgerInsertColumns = []string{
	"id", "ingredient_id", "transaction_type", "quantity",
	"reference_type", "reference_id", "notes", "recorded_by", "created_at",
}

var ledgerSelectColumns = append(append([]string{}, ledgerInsertColumns...), "unit_cost")

// LedgerRepo implements inventory.LedgerRepository. It only ever inserts.
type LedgerRepo struct {
	txm *postgres.TxManager
}

var _ inventory.LedgerRepository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{txm: txm}
}

// Append inserts entries. Inside a transaction multi-entry appends use COPY.
func (r *LedgerRepo) Append(ctx context.Context, entries ...entity.StockTransaction) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if !e.Type.Valid() {
			return fmt.Errorf("invalid transaction type %q", e.Type)
		}
		if !e.Quantity.IsPositive() {
			return fmt.Errorf("ledger quantity must be positive, got %s", e.Quantity)
		}
	}

	if len(entries) > 1 && r.txm.GetTx(ctx) != nil {
		rows := make([][]any, len(entries))
		for i, e := range entries {
			rows[i] = ledgerRow(e)
		}
		if _, err := r.txm.CopyFrom(ctx, ledgerTable, ledgerInsertColumns, rows); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
		return nil
	}

	sql, args, err := buildLedgerInsert(entries).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

func ledgerRow(e entity.StockTransaction) []any {
	var refType *string
	if e.ReferenceType != nil {
		s := string(*e.ReferenceType)
		refType = &s
	}
	return []any{
		e.ID, e.IngredientID, string(e.Type), int64(e.Quantity),
		refType, e.ReferenceID, e.Notes, e.RecordedBy, e.CreatedAt,
	}
}

func buildLedgerInsert(entries []entity.StockTransaction) squirrel.InsertBuilder {
	q := postgres.Builder().Insert(ledgerTable).Columns(ledgerInsertColumns...)
	for _, e := range entries {
		q = q.Values(ledgerRow(e)...)
	}
	return q
}

// List returns entries newest first.
func (r *LedgerRepo) List(ctx context.Context, filter entity.LedgerFilter) ([]entity.StockTransaction, error) {
	sql, args, err := buildLedgerList(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []entity.StockTransaction
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return out, nil
}

func buildLedgerList(filter entity.LedgerFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(ledgerSelectColumns...).From(ledgerTable)
	if filter.IngredientID != nil {
		q = q.Where("ingredient_id = ?", *filter.IngredientID)
	}
	if len(filter.Types) > 0 {
		names := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			names[i] = string(t)
		}
		q = q.Where(squirrel.Eq{"transaction_type": names})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	return postgres.Paginate(q.OrderBy("created_at DESC", "id DESC"), filter.Limit, filter.Offset)
}

type typeTotal struct {
	Type  entity.TransactionType `db:"transaction_type"`
	Total int64                  `db:"total"`
}

// SumByType totals quantities per type with from <= created_at <= to.
func (r *LedgerRepo) SumByType(ctx context.Context, ingredientID id.ID, from, to time.Time) (map[entity.TransactionType]types.Quantity, error) {
	sql, args, err := buildSumByType(ingredientID, from, to).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []typeTotal
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}

	out := make(map[entity.TransactionType]types.Quantity, len(rows))
	for _, row := range rows {
		out[row.Type] = types.NewQuantityFromInt64Scaled(row.Total)
	}
	return out, nil
}

func buildSumByType(ingredientID id.ID, from, to time.Time) squirrel.SelectBuilder {
	return postgres.Builder().
		Select("transaction_type", "SUM(quantity)::bigint AS total").
		From(ledgerTable).
		Where("ingredient_id = ?", ingredientID).
		Where(squirrel.GtOrEq{"created_at": from}).
		Where(squirrel.LtOrEq{"created_at": to}).
		GroupBy("transaction_type")
}
