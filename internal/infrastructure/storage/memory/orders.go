package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/forecast"
	"cafepos/internal/domain/orders"
)

// OrderRepo implements orders.Repository.
type OrderRepo struct{ s *Store }

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

var _ orders.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	return r.s.write(ctx, func(d *data) error {
		for _, v := range d.orders {
			if v.Number == o.Number {
				return apperror.NewDuplicate("order", "order_number", o.Number)
			}
		}
		stored := *o
		stored.Items = append([]orders.Item(nil), o.Items...)
		stored.Payment = nil
		d.orders[o.ID] = stored
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	var out *orders.Order
	r.s.read(ctx, func(d *data) {
		v, ok := d.orders[orderID]
		if !ok {
			return
		}
		v.Items = append([]orders.Item(nil), v.Items...)
		if p, ok := d.payments[orderID]; ok {
			v.Payment = &p
		}
		out = &v
	})
	if out == nil {
		return nil, apperror.NewNotFound("order", orderID)
	}
	return out, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID id.ID, status orders.Status) error {
	return r.s.write(ctx, func(d *data) error {
		v, ok := d.orders[orderID]
		if !ok {
			return apperror.NewNotFound("order", orderID)
		}
		v.Status = status
		v.UpdatedAt = time.Now().UTC()
		d.orders[orderID] = v
		return nil
	})
}

func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) ([]*orders.Order, error) {
	var out []*orders.Order
	r.s.read(ctx, func(d *data) {
		for _, v := range d.orders {
			v := v
			if filter.Status != nil && v.Status != *filter.Status {
				continue
			}
			if filter.From != nil && v.CreatedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && v.CreatedAt.After(*filter.To) {
				continue
			}
			v.Items = nil
			out = append(out, &v)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *OrderRepo) ExpirePending(ctx context.Context, before time.Time) ([]id.ID, error) {
	var expired []id.ID
	err := r.s.write(ctx, func(d *data) error {
		for k, v := range d.orders {
			if v.Status == orders.StatusPending && v.CreatedAt.Before(before) {
				v.Status = orders.StatusExpired
				v.UpdatedAt = time.Now().UTC()
				d.orders[k] = v
				expired = append(expired, k)
			}
		}
		return nil
	})
	return id.SortedUnique(expired), err
}

// PaymentRepo implements orders.PaymentRepository and forecast.SalesSource.
type PaymentRepo struct{ s *Store }

// Payments returns the payment repository.
func (s *Store) Payments() *PaymentRepo { return &PaymentRepo{s: s} }

var (
	_ orders.PaymentRepository = (*PaymentRepo)(nil)
	_ forecast.SalesSource     = (*PaymentRepo)(nil)
)

func (r *PaymentRepo) Create(ctx context.Context, p *orders.Payment) error {
	return r.s.write(ctx, func(d *data) error {
		if _, exists := d.payments[p.OrderID]; exists {
			return apperror.NewDuplicate("payment", "order_id", p.OrderID.String())
		}
		d.payments[p.OrderID] = *p
		return nil
	})
}

func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID id.ID) (*orders.Payment, error) {
	var out *orders.Payment
	r.s.read(ctx, func(d *data) {
		if v, ok := d.payments[orderID]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("payment", orderID)
	}
	return out, nil
}

func (r *PaymentRepo) Update(ctx context.Context, p *orders.Payment) error {
	return r.s.write(ctx, func(d *data) error {
		if _, ok := d.payments[p.OrderID]; !ok {
			return apperror.NewNotFound("payment", p.OrderID)
		}
		d.payments[p.OrderID] = *p
		return nil
	})
}

func (r *PaymentRepo) FailPending(ctx context.Context, orderIDs []id.ID) error {
	return r.s.write(ctx, func(d *data) error {
		for _, oid := range orderIDs {
			if v, ok := d.payments[oid]; ok && v.Status == orders.PaymentPending {
				v.Status = orders.PaymentFailed
				v.UpdatedAt = time.Now().UTC()
				d.payments[oid] = v
			}
		}
		return nil
	})
}

func (r *PaymentRepo) DailyRevenue(ctx context.Context, from, to time.Time) ([]forecast.DailyRevenue, error) {
	totals := make(map[time.Time]decimal.Decimal)
	r.s.read(ctx, func(d *data) {
		for _, p := range d.payments {
			if p.Status != orders.PaymentSuccess || p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
				continue
			}
			c := p.CreatedAt.UTC()
			day := time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
			totals[day] = totals[day].Add(p.Amount)
		}
	})
	out := make([]forecast.DailyRevenue, 0, len(totals))
	for day, total := range totals {
		out = append(out, forecast.DailyRevenue{Day: day, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}
