package orders_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/events"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/orders"
	"cafepos/internal/infrastructure/storage/memory"
)

type fixture struct {
	store *memory.Store
	svc   *orders.Service
	clock time.Time
	flour *inventory.Ingredient
	bread *catalog.Product
	cake  *catalog.Product
}

func grams(n int64) types.Quantity { return types.NewQuantityFromInt(n) }

// newFixture stocks 1000 g flour. Bread costs 50 and takes 400 g; cake
// costs 90 and takes 300 g.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	flour, err := s.AddIngredient(ctx, "Flour", inventory.UnitGram, grams(1000), 0)
	require.NoError(t, err)
	bread, err := s.AddProduct(ctx, "Bread", types.MustMoney("50"), memory.Use{Ingredient: flour, PerUnit: grams(400)})
	require.NoError(t, err)
	cake, err := s.AddProduct(ctx, "Cake", types.MustMoney("90"), memory.Use{Ingredient: flour, PerUnit: grams(300)})
	require.NoError(t, err)

	f := &fixture{store: s, clock: time.Now(), flour: flour, bread: bread, cake: cake}
	engine := deduction.NewEngine(deduction.Config{
		TxManager:   s,
		Products:    s.Products(),
		Recipes:     s.Recipes(),
		Ingredients: s.Ingredients(),
		Ledger:      s.Ledger(),
		Events:      s,
	})
	f.svc = orders.NewService(orders.Config{
		TxManager: s,
		Orders:    s.Orders(),
		Payments:  s.Payments(),
		Products:  s.Products(),
		Checker:   availability.NewChecker(s.Products(), s.Recipes(), s.Ingredients()),
		Engine:    engine,
		Events:    s,
		Audit:     s,
		Now:       func() time.Time { return f.clock },
	})
	return f
}

func (f *fixture) stock(t *testing.T) types.Quantity {
	t.Helper()
	ing, err := f.store.Ingredients().GetByID(context.Background(), f.flour.ID)
	require.NoError(t, err)
	return ing.CurrentStock
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	list, err := f.svc.List(context.Background(), orders.ListFilter{})
	require.NoError(t, err)
	return len(list)
}

func TestNewNumber(t *testing.T) {
	re := regexp.MustCompile(`^ORD-[0-9A-F]{8}$`)
	a, b := orders.NewNumber(), orders.NewNumber()
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cashier := id.New()

	receipt, err := f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{
			{ProductID: f.bread.ID, Quantity: 1},
			{ProductID: f.bread.ID, Quantity: 1},
		},
		CustomerName: "Ana",
	}, cashier)
	require.NoError(t, err)

	o := receipt.Order
	assert.Equal(t, orders.StatusInProgress, o.Status)
	require.Len(t, o.Items, 1, "duplicate product lines are merged")
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, o.TotalAmount.Equal(types.MustMoney("100")))
	assert.Equal(t, orders.MethodCash, receipt.Payment.Method)
	assert.Equal(t, orders.PaymentSuccess, receipt.Payment.Status)
	require.NotNil(t, receipt.Payment.ProcessedBy)
	assert.Equal(t, cashier, *receipt.Payment.ProcessedBy)
	assert.Equal(t, deduction.StateCommitted, receipt.Deduction.State)

	assert.Equal(t, grams(200), f.stock(t))

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, orders.PaymentSuccess, stored.Payment.Status)

	var paid int
	for _, e := range f.store.Events() {
		if e.EventType == events.TypeOrderPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestCheckout_PrecheckRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 3}},
	}, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	bare, err := f.store.AddProduct(ctx, "Mystery", types.MustMoney("1"))
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: bare.ID, Quantity: 1}},
	}, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRecipe))

	assert.Equal(t, 0, f.orderCount(t))
	assert.Equal(t, grams(1000), f.stock(t))
}

func TestCheckout_RollsBackOrderWhenDeductionFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Each item passes the per-item pre-check; together they need 1100 g.
	_, err := f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{
			{ProductID: f.bread.ID, Quantity: 2},
			{ProductID: f.cake.ID, Quantity: 1},
		},
	}, id.Nil())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	assert.Equal(t, 0, f.orderCount(t))
	assert.Equal(t, grams(1000), f.stock(t))
	assert.Empty(t, f.store.Ledger().All())
}

func TestCheckout_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Checkout(ctx, orders.Request{}, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Checkout(ctx, orders.Request{
		Items:  []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 1}},
		Method: "BARTER",
	}, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: id.New(), Quantity: 1}},
	}, id.Nil())
	assert.True(t, apperror.IsNotFound(err))
}

func TestCheckout_RejectsQuantityAboveUnitBound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: catalog.MaxUnits + 1}},
	}, id.Nil())
	require.True(t, apperror.HasCode(err, apperror.CodeValidation), "%v", err)

	// Lines for the same product are merged before the bound applies.
	_, err = f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{
			{ProductID: f.bread.ID, Quantity: catalog.MaxUnits},
			{ProductID: f.bread.ID, Quantity: 1},
		},
	}, id.Nil())
	require.True(t, apperror.HasCode(err, apperror.CodeValidation), "%v", err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, 1, appErr.Details["item"])
}

func TestPlaceAndConfirm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.cake.ID, Quantity: 2}},
	}, id.Nil())
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, orders.MethodOnline, o.Payment.Method)
	assert.Equal(t, orders.PaymentPending, o.Payment.Status)
	assert.Equal(t, grams(1000), f.stock(t), "placing an order does not touch stock")

	receipt, err := f.svc.ConfirmPayment(ctx, o.ID, "GW-123", id.Nil())
	require.NoError(t, err)
	assert.Equal(t, orders.StatusInProgress, receipt.Order.Status)
	assert.Equal(t, orders.PaymentSuccess, receipt.Payment.Status)
	assert.Equal(t, "GW-123", receipt.Payment.ReferenceNumber)
	assert.Equal(t, grams(400), f.stock(t))

	_, err = f.svc.ConfirmPayment(ctx, o.ID, "", id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))

	finished, err := f.svc.Finish(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFinished, finished.Status)

	_, err = f.svc.Cancel(ctx, o.ID, "too late")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestConfirmPayment_ShortageKeepsOrderPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 2}},
	}, id.Nil())
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.cake.ID, Quantity: 1}},
	}, id.Nil())
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, o.ID, "", id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, stored.Status)
	assert.Equal(t, orders.PaymentPending, stored.Payment.Status)
	assert.Equal(t, grams(700), f.stock(t))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	o, err := f.svc.PlaceOrder(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 1}},
	}, id.Nil())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, o.ID, "customer left")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, stored.Status)
	assert.Equal(t, orders.PaymentFailed, stored.Payment.Status)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, orders.AuditEntityOrder, entries[0].EntityType)
	assert.Equal(t, "customer left", entries[0].Changes["reason"])

	// A paid order can be cancelled but its stock is not returned.
	receipt, err := f.svc.Checkout(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 1}},
	}, id.Nil())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, receipt.Order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, grams(600), f.stock(t))
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.clock = time.Now().Add(-2 * time.Hour)
	old, err := f.svc.PlaceOrder(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 1}},
	}, id.Nil())
	require.NoError(t, err)

	f.clock = time.Now()
	fresh, err := f.svc.PlaceOrder(ctx, orders.Request{
		Items: []orders.ItemRequest{{ProductID: f.bread.ID, Quantity: 1}},
	}, id.Nil())
	require.NoError(t, err)

	n, err := f.svc.ExpireStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := f.svc.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusExpired, stored.Status)
	assert.Equal(t, orders.PaymentFailed, stored.Payment.Status)

	stored, err = f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, stored.Status)

	pending := orders.StatusPending
	list, err := f.svc.List(ctx, orders.ListFilter{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
