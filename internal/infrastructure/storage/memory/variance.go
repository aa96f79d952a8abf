package memory

import (
	"context"
	"time"

	"cafepos/internal/core/id"
	"cafepos/internal/domain/variance"
)

// WasteRepo implements variance.WasteRepository.
type WasteRepo struct{ s *Store }

// Waste returns the waste log repository.
func (s *Store) Waste() *WasteRepo { return &WasteRepo{s: s} }

var _ variance.WasteRepository = (*WasteRepo)(nil)

func (r *WasteRepo) Create(ctx context.Context, log *variance.WasteLog) error {
	return r.s.write(ctx, func(d *data) error {
		d.waste = append(d.waste, *log)
		return nil
	})
}

func (r *WasteRepo) List(ctx context.Context, filter variance.WasteFilter) ([]variance.WasteLog, error) {
	var out []variance.WasteLog
	r.s.read(ctx, func(d *data) {
		for i := len(d.waste) - 1; i >= 0; i-- {
			if matchWaste(d.waste[i], filter) {
				out = append(out, d.waste[i])
			}
		}
	})
	return paginate(out, filter.Limit, 0), nil
}

func (r *WasteRepo) Totals(ctx context.Context, filter variance.WasteFilter) (map[variance.WasteType]variance.Totals, error) {
	out := make(map[variance.WasteType]variance.Totals)
	r.s.read(ctx, func(d *data) {
		for _, w := range d.waste {
			if !matchWaste(w, filter) {
				continue
			}
			t := out[w.WasteType]
			t.Count++
			t.Quantity += w.Quantity
			out[w.WasteType] = t
		}
	})
	return out, nil
}

func matchWaste(w variance.WasteLog, f variance.WasteFilter) bool {
	if f.IngredientID != nil && w.IngredientID != *f.IngredientID {
		return false
	}
	if f.Type != nil && w.WasteType != *f.Type {
		return false
	}
	if f.From != nil && w.WasteDate.Before(*f.From) {
		return false
	}
	if f.To != nil && w.WasteDate.After(*f.To) {
		return false
	}
	return true
}

// CountRepo implements variance.CountRepository.
type CountRepo struct{ s *Store }

// Counts returns the physical count repository.
func (s *Store) Counts() *CountRepo { return &CountRepo{s: s} }

var _ variance.CountRepository = (*CountRepo)(nil)

func (r *CountRepo) Create(ctx context.Context, c *variance.PhysicalCount) error {
	return r.s.write(ctx, func(d *data) error {
		d.counts = append(d.counts, *c)
		return nil
	})
}

func (r *CountRepo) ListByIngredient(ctx context.Context, ingredientID id.ID, limit int) ([]variance.PhysicalCount, error) {
	var out []variance.PhysicalCount
	r.s.read(ctx, func(d *data) {
		for i := len(d.counts) - 1; i >= 0; i-- {
			if d.counts[i].IngredientID == ingredientID {
				out = append(out, d.counts[i])
			}
		}
	})
	return paginate(out, limit, 0), nil
}

// RecordRepo implements variance.RecordRepository.
type RecordRepo struct{ s *Store }

// VarianceRecords returns the variance record repository.
func (s *Store) VarianceRecords() *RecordRepo { return &RecordRepo{s: s} }

var _ variance.RecordRepository = (*RecordRepo)(nil)

func (r *RecordRepo) Create(ctx context.Context, rec *variance.Record) error {
	return r.s.write(ctx, func(d *data) error {
		d.records = append(d.records, *rec)
		return nil
	})
}

func (r *RecordRepo) ListSince(ctx context.Context, since time.Time) ([]variance.Record, error) {
	var out []variance.Record
	r.s.read(ctx, func(d *data) {
		for i := len(d.records) - 1; i >= 0; i-- {
			if !d.records[i].CreatedAt.Before(since) {
				out = append(out, d.records[i])
			}
		}
	})
	return out, nil
}
