// Package prep_repo provides the PostgreSQL prep batch repository.
package prep_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/prep"
	"cafepos/internal/infrastructure/storage/postgres"
)

var batchColumns = []string{
	"id", "name", "product_id", "recipe_id", "quantity_produced", "status",
	"prepared_by", "prep_start", "prep_end", "notes", "created_at",
}

// BatchRepo implements prep.Repository.
type BatchRepo struct {
	txm *postgres.TxManager
}

var _ prep.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a prep batch repository.
func NewBatchRepo(txm *postgres.TxManager) *BatchRepo {
	return &BatchRepo{txm: txm}
}

func (r *BatchRepo) Create(ctx context.Context, b *prep.Batch) error {
	if id.IsNil(b.ID) {
		b.ID = id.New()
	}
	sql, args, err := postgres.Builder().
		Insert("prep_batches").
		Columns(batchColumns...).
		Values(b.ID, b.Name, b.ProductID, b.RecipeID, b.QuantityProduced, b.Status,
			b.PreparedBy, b.PrepStart, b.PrepEnd, b.Notes, b.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert prep batch: %w", err)
	}
	return nil
}

func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*prep.Batch, error) {
	return r.get(ctx, batchID, "")
}

func (r *BatchRepo) GetForUpdate(ctx context.Context, batchID id.ID) (*prep.Batch, error) {
	if _, err := r.txm.RequireTx(ctx); err != nil {
		return nil, fmt.Errorf("lock prep batch: %w", err)
	}
	return r.get(ctx, batchID, "FOR UPDATE")
}

func (r *BatchRepo) get(ctx context.Context, batchID id.ID, suffix string) (*prep.Batch, error) {
	q := postgres.Builder().Select(batchColumns...).From("prep_batches").Where("id = ?", batchID)
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b prep.Batch
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("prep batch", batchID)
		}
		return nil, fmt.Errorf("get prep batch: %w", err)
	}
	return &b, nil
}

// Update stores the mutable lifecycle fields.
func (r *BatchRepo) Update(ctx context.Context, b *prep.Batch) error {
	sql, args, err := postgres.Builder().
		Update("prep_batches").
		Set("status", b.Status).
		Set("prepared_by", b.PreparedBy).
		Set("prep_start", b.PrepStart).
		Set("prep_end", b.PrepEnd).
		Set("notes", b.Notes).
		Where("id = ?", b.ID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update prep batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("prep batch", b.ID)
	}
	return nil
}
