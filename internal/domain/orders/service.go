package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/tx"
	"cafepos/internal/domain/audit"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/events"
	"cafepos/pkg/logger"
)

// DefaultPendingTTL is how long an unpaid order stays PENDING.
const DefaultPendingTTL = time.Hour

// AuditEntityOrder is the audit entity type for orders.
const AuditEntityOrder = "order"

// Receipt is the outcome of a paid order.
type Receipt struct {
	Order     *Order            `json:"order"`
	Payment   *Payment          `json:"payment"`
	Deduction *deduction.Result `json:"deduction"`
}

// Service runs the order lifecycle. Stock is only ever deducted through the
// deduction engine, inside the same transaction that marks the order paid.
type Service struct {
	txm      tx.Manager
	orders   Repository
	payments PaymentRepository
	products catalog.ProductRepository
	checker  *availability.Checker
	engine   *deduction.Engine
	events   events.Publisher
	audit    audit.Recorder
	now      func() time.Time
}

// Config wires the order service.
type Config struct {
	TxManager tx.Manager
	Orders    Repository
	Payments  PaymentRepository
	Products  catalog.ProductRepository
	Checker   *availability.Checker
	Engine    *deduction.Engine
	Events    events.Publisher // optional
	Audit     audit.Recorder   // optional
	Now       func() time.Time // optional
}

// NewService creates the order service.
func NewService(cfg Config) *Service {
	s := &Service{
		txm:      cfg.TxManager,
		orders:   cfg.Orders,
		payments: cfg.Payments,
		products: cfg.Products,
		checker:  cfg.Checker,
		engine:   cfg.Engine,
		events:   cfg.Events,
		audit:    cfg.Audit,
		now:      cfg.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Checkout sells the requested items in one step: availability pre-check
// without writes, then order, deduction and payment in one transaction.
func (s *Service) Checkout(ctx context.Context, req Request, actor id.ID) (*Receipt, error) {
	order, err := s.buildOrder(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, order); err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = MethodCash
	}
	order.Status = StatusInProgress

	var receipt *Receipt
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		res, err := s.engine.DeductForOrder(ctx, engineOrder(order), actor)
		if err != nil {
			return err
		}

		payment := s.newPayment(order, method, PaymentSuccess, req.ReferenceNumber, actor)
		if err := s.payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := s.publishPaid(ctx, order, payment); err != nil {
			return err
		}
		order.Payment = payment
		receipt = &Receipt{Order: order, Payment: payment, Deduction: res}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "checkout completed",
		"order_id", order.ID,
		"order_number", order.Number,
		"total", order.TotalAmount,
		"items", len(order.Items),
	)
	return receipt, nil
}

// PlaceOrder creates a PENDING order with a PENDING payment. Stock is not
// touched until ConfirmPayment.
func (s *Service) PlaceOrder(ctx context.Context, req Request, actor id.ID) (*Order, error) {
	order, err := s.buildOrder(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = MethodOnline
	}
	order.Status = StatusPending

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order.Payment = s.newPayment(order, method, PaymentPending, req.ReferenceNumber, actor)
		if err := s.payments.Create(ctx, order.Payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order placed", "order_id", order.ID, "order_number", order.Number)
	return order, nil
}

// ConfirmPayment pays a PENDING order: deducts stock, marks the payment
// SUCCESS and the order IN_PROGRESS, all or nothing.
func (s *Service) ConfirmPayment(ctx context.Context, orderID id.ID, reference string, actor id.ID) (*Receipt, error) {
	receipt, err := tx.Run(ctx, s.txm, func(ctx context.Context) (*Receipt, error) {
		order, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status != StatusPending {
			return nil, apperror.NewInvalidState("order", string(order.Status), "confirm payment for")
		}

		res, err := s.engine.DeductForOrder(ctx, engineOrder(order), actor)
		if err != nil {
			return nil, err
		}

		payment, err := s.payments.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		payment.Status = PaymentSuccess
		if reference != "" {
			payment.ReferenceNumber = reference
		}
		payment.ProcessedBy = actorPtr(actor)
		payment.Touch()
		if err := s.payments.Update(ctx, payment); err != nil {
			return nil, fmt.Errorf("update payment: %w", err)
		}

		if err := s.orders.UpdateStatus(ctx, orderID, StatusInProgress); err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		order.Status = StatusInProgress
		order.Payment = payment

		if err := s.publishPaid(ctx, order, payment); err != nil {
			return nil, err
		}
		return &Receipt{Order: order, Payment: payment, Deduction: res}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment confirmed", "order_id", orderID)
	return receipt, nil
}

// Finish marks an IN_PROGRESS order as served.
func (s *Service) Finish(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.transition(ctx, orderID, "finish", func(o *Order) error {
		if o.Status != StatusInProgress {
			return apperror.NewInvalidState("order", string(o.Status), "finish")
		}
		o.Status = StatusFinished
		return nil
	})
}

// Cancel cancels a PENDING or IN_PROGRESS order. Deducted stock is not
// returned: ingredients of a started order are considered consumed.
func (s *Service) Cancel(ctx context.Context, orderID id.ID, reason string) (*Order, error) {
	return s.transition(ctx, orderID, "cancel", func(o *Order) error {
		if !o.Status.CanCancel() {
			return apperror.NewInvalidState("order", string(o.Status), "cancel")
		}
		prev := o.Status
		o.Status = StatusCancelled

		if prev == StatusPending {
			if err := s.payments.FailPending(ctx, []id.ID{o.ID}); err != nil {
				return fmt.Errorf("fail payment: %w", err)
			}
		}
		return s.audit.LogChange(ctx, AuditEntityOrder, o.ID, audit.ActionCancel, map[string]any{
			"status": audit.Change(prev, StatusCancelled),
			"reason": reason,
		})
	})
}

// Get returns an order with items and payment.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.orders.List(ctx, filter)
}

// ExpireStale expires PENDING orders older than ttl and fails their payments.
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	cutoff := s.now().Add(-ttl)

	var expired []id.ID
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		expired, err = s.orders.ExpirePending(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("expire orders: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}
		return s.payments.FailPending(ctx, expired)
	})
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		logger.Info(ctx, "expired pending orders", "count", len(expired), "cutoff", cutoff)
	}
	return len(expired), nil
}

func (s *Service) transition(ctx context.Context, orderID id.ID, action string, apply func(*Order) error) (*Order, error) {
	var order *Order
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(order); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, orderID, order.Status); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		order.Touch()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order "+action, "order_id", orderID, "status", order.Status)
	return order, nil
}

// buildOrder validates the request and snapshots product names and prices.
// Duplicate product lines are merged.
func (s *Service) buildOrder(ctx context.Context, req Request, actor id.ID) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, apperror.NewValidation("order has no items")
	}
	if req.Method != "" && !req.Method.Valid() {
		return nil, apperror.NewValidation("invalid payment method").WithDetail("value", string(req.Method))
	}

	merged := make(map[id.ID]int, len(req.Items))
	var productIDs []id.ID
	for i, it := range req.Items {
		if err := catalog.ValidateUnits(it.Quantity); err != nil {
			return nil, withItem(err, i)
		}
		if _, seen := merged[it.ProductID]; !seen {
			productIDs = append(productIDs, it.ProductID)
		}
		merged[it.ProductID] += it.Quantity
		if err := catalog.ValidateUnits(merged[it.ProductID]); err != nil {
			return nil, withItem(err, i)
		}
	}

	products, err := s.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	now := s.now().UTC()
	order := &Order{
		ID:           id.New(),
		Number:       NewNumber(),
		TotalAmount:  decimal.Zero,
		CustomerName: req.CustomerName,
		TableNumber:  req.TableNumber,
		Notes:        req.Notes,
		CreatedBy:    actorPtr(actor),
		Timestamps:   entity.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	for _, pid := range productIDs {
		p, ok := products[pid]
		if !ok {
			return nil, apperror.NewNotFound("product", pid)
		}
		if p.IsArchived {
			return nil, apperror.NewValidation(fmt.Sprintf("product %q is archived", p.Name)).
				WithDetail("productId", pid)
		}
		qty := merged[pid]
		subtotal := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		order.Items = append(order.Items, Item{
			ID:           id.New(),
			OrderID:      order.ID,
			ProductID:    pid,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     qty,
			Subtotal:     subtotal,
			CreatedAt:    now,
		})
		order.TotalAmount = order.TotalAmount.Add(subtotal)
	}
	return order, nil
}

// precheck consults the availability checker before anything is written.
func (s *Service) precheck(ctx context.Context, order *Order) error {
	items := make([]availability.Item, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, availability.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	res, err := s.checker.CheckOrderAvailability(ctx, items)
	if err != nil {
		return err
	}
	if res.Available {
		return nil
	}
	for _, r := range res.Items {
		if !r.HasRecipe {
			return apperror.NewMissingRecipe(r.ProductID, r.ProductName)
		}
	}
	return apperror.NewInsufficientStock("Some items cannot be made with current stock", res.Shortages)
}

func (s *Service) newPayment(order *Order, method PaymentMethod, status PaymentStatus, ref string, actor id.ID) *Payment {
	p := &Payment{
		ID:              id.New(),
		OrderID:         order.ID,
		Method:          method,
		Status:          status,
		Amount:          order.TotalAmount,
		ReferenceNumber: ref,
		Timestamps:      order.Timestamps,
	}
	if status == PaymentSuccess {
		p.ProcessedBy = actorPtr(actor)
	}
	return p
}

func (s *Service) publishPaid(ctx context.Context, order *Order, payment *Payment) error {
	err := s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     events.TypeOrderPaid,
		Payload: map[string]any{
			"orderNumber": order.Number,
			"amount":      payment.Amount,
			"method":      payment.Method,
		},
	})
	if err != nil {
		return fmt.Errorf("publish order paid: %w", err)
	}
	return nil
}

func engineOrder(o *Order) deduction.Order {
	lines := make([]deduction.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, deduction.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return deduction.Order{ID: o.ID, Number: o.Number, Items: lines}
}

func actorPtr(actor id.ID) *id.ID {
	if id.IsNil(actor) {
		return nil
	}
	return &actor
}

func withItem(err error, i int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("item", i)
	}
	return err
}
