package memory

import (
	"context"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/prep"
)

// BatchRepo implements prep.Repository.
type BatchRepo struct{ s *Store }

// Batches returns the prep batch repository.
func (s *Store) Batches() *BatchRepo { return &BatchRepo{s: s} }

var _ prep.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) Create(ctx context.Context, b *prep.Batch) error {
	return r.s.write(ctx, func(d *data) error {
		d.batches[b.ID] = *b
		return nil
	})
}

func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*prep.Batch, error) {
	var out *prep.Batch
	r.s.read(ctx, func(d *data) {
		if v, ok := d.batches[batchID]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("prep batch", batchID)
	}
	return out, nil
}

func (r *BatchRepo) GetForUpdate(ctx context.Context, batchID id.ID) (*prep.Batch, error) {
	return r.GetByID(ctx, batchID)
}

func (r *BatchRepo) Update(ctx context.Context, b *prep.Batch) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.batches[b.ID]; !ok {
			return apperror.NewNotFound("prep batch", b.ID)
		}
		d.batches[b.ID] = *b
		return nil
	})
}
