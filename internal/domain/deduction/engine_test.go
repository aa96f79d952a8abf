package deduction_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/events"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/infrastructure/storage/memory"
)

var errDiskFull = errors.New("disk full")

type failingLedger struct{ inventory.LedgerRepository }

func (failingLedger) Append(context.Context, ...entity.StockTransaction) error { return errDiskFull }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error { return errDiskFull }

type fixture struct {
	store  *memory.Store
	engine *deduction.Engine
	flour  *inventory.Ingredient
	sugar  *inventory.Ingredient
	bread  *catalog.Product
	cake   *catalog.Product
}

func grams(n int64) types.Quantity { return types.NewQuantityFromInt(n) }

// newFixture stocks 1000 g flour (min 300) and 500 g sugar.
// Bread takes 400 g flour; cake takes 300 g flour and 100 g sugar.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	flour, err := s.AddIngredient(ctx, "Flour", inventory.UnitGram, grams(1000), grams(300))
	require.NoError(t, err)
	sugar, err := s.AddIngredient(ctx, "Sugar", inventory.UnitGram, grams(500), 0)
	require.NoError(t, err)
	bread, err := s.AddProduct(ctx, "Bread", types.MustMoney("50"),
		memory.Use{Ingredient: flour, PerUnit: grams(400)})
	require.NoError(t, err)
	cake, err := s.AddProduct(ctx, "Cake", types.MustMoney("90"),
		memory.Use{Ingredient: flour, PerUnit: grams(300)},
		memory.Use{Ingredient: sugar, PerUnit: grams(100)})
	require.NoError(t, err)

	return &fixture{
		store:  s,
		engine: newEngine(s, nil, nil),
		flour:  flour,
		sugar:  sugar,
		bread:  bread,
		cake:   cake,
	}
}

func newEngine(s *memory.Store, ledger inventory.LedgerRepository, pub events.Publisher) *deduction.Engine {
	if ledger == nil {
		ledger = s.Ledger()
	}
	if pub == nil {
		pub = s
	}
	return deduction.NewEngine(deduction.Config{
		TxManager:   s,
		Products:    s.Products(),
		Recipes:     s.Recipes(),
		Ingredients: s.Ingredients(),
		Ledger:      ledger,
		Events:      pub,
	})
}

func (f *fixture) stock(t *testing.T, ing *inventory.Ingredient) types.Quantity {
	t.Helper()
	got, err := f.store.Ingredients().GetByID(context.Background(), ing.ID)
	require.NoError(t, err)
	return got.CurrentStock
}

func order(lines ...deduction.Line) deduction.Order {
	return deduction.Order{ID: id.New(), Number: "ORD-TEST0001", Items: lines}
}

func TestDeductForOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := order(deduction.Line{ProductID: f.bread.ID, Quantity: 2})

	res, err := f.engine.DeductForOrder(ctx, o, id.Nil())
	require.NoError(t, err)
	assert.Equal(t, deduction.StateCommitted, res.State)
	assert.Equal(t, o.ID, res.ReferenceID)
	require.Len(t, res.Deductions, 1)
	d := res.Deductions[0]
	assert.Equal(t, "Flour", d.Ingredient)
	assert.Equal(t, "Bread", d.Product)
	assert.Equal(t, grams(800), d.QuantityDeducted)
	assert.Equal(t, grams(200), d.RemainingStock)
	assert.True(t, res.TotalCost.IsZero())

	assert.Equal(t, grams(200), f.stock(t, f.flour))

	ledger := f.store.Ledger().All()
	require.Len(t, ledger, 1)
	e := ledger[0]
	assert.Equal(t, entity.TransactionDeduction, e.Type)
	assert.Equal(t, grams(800), e.Quantity)
	require.NotNil(t, e.ReferenceType)
	assert.Equal(t, entity.ReferenceOrder, *e.ReferenceType)
	require.NotNil(t, e.ReferenceID)
	assert.Equal(t, o.ID, *e.ReferenceID)
	assert.Equal(t, "Deduction for Bread (Order: ORD-TEST0001)", e.Notes)
	assert.Nil(t, e.RecordedBy)
}

func TestDeductForOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.bread.ID, Quantity: 2}), id.Nil())
	require.NoError(t, err)

	_, err = f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.bread.ID, Quantity: 1}), id.Nil())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "Insufficient 'Flour' for Bread. Need 400.0000 g, but only 200.0000 available.", appErr.Message)
	assert.True(t, deduction.IsShortage(err))

	shortages, ok := appErr.Details["shortages"].([]availability.Shortage)
	require.True(t, ok)
	require.Len(t, shortages, 1)
	assert.Equal(t, grams(200), shortages[0].Shortage)

	assert.Equal(t, grams(200), f.stock(t, f.flour))
	assert.Len(t, f.store.Ledger().All(), 1)
}

func TestDeductForOrder_AggregatesDemandAcrossLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 2 bread (800 g) and 1 cake (300 g) each fit alone but not together.
	_, err := f.engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: f.bread.ID, Quantity: 2},
		deduction.Line{ProductID: f.cake.ID, Quantity: 1},
	), id.Nil())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	appErr, _ := apperror.AsAppError(err)
	shortages := appErr.Details["shortages"].([]availability.Shortage)
	require.Len(t, shortages, 1)
	assert.Equal(t, "Bread, Cake", shortages[0].Product)
	assert.Equal(t, grams(1100), shortages[0].Needed)

	assert.Equal(t, grams(1000), f.stock(t, f.flour))
	assert.Equal(t, grams(500), f.stock(t, f.sugar))
	assert.Empty(t, f.store.Ledger().All())
}

func TestDeductForOrder_OneEntryPerItemAndLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: f.bread.ID, Quantity: 1},
		deduction.Line{ProductID: f.cake.ID, Quantity: 2},
	), id.Nil())
	require.NoError(t, err)
	require.Len(t, res.Deductions, 3)
	assert.Len(t, f.store.Ledger().All(), 3)
	assert.Equal(t, grams(0), f.stock(t, f.flour))
	assert.Equal(t, grams(300), f.stock(t, f.sugar))
}

func TestDeductForOrder_Unavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Ingredients().SetAvailability(ctx, f.sugar.ID, false))

	_, err := f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.cake.ID, Quantity: 1}), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeUnavailableIngredient))

	// A real stock shortage wins over a manual override.
	_, err = f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.cake.ID, Quantity: 4}), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	assert.Equal(t, grams(1000), f.stock(t, f.flour))
}

func TestDeductForOrder_MissingRecipe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bare, err := f.store.AddProduct(ctx, "Mystery", types.MustMoney("1"))
	require.NoError(t, err)

	_, err = f.engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: f.bread.ID, Quantity: 1},
		deduction.Line{ProductID: bare.ID, Quantity: 1},
	), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRecipe))
	assert.Equal(t, grams(1000), f.stock(t, f.flour))
}

func TestDeductForOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.DeductForOrder(ctx, order(), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.bread.ID, Quantity: 0}), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: id.New(), Quantity: 1}), id.Nil())
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeductForOrder_RejectsOverflowingDemand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// At 400 g a loaf both counts would wrap int64 demand.
	for _, qty := range []int{4_611_686_018_427, 4_611_686_018_428} {
		_, err := f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.bread.ID, Quantity: qty}), id.Nil())
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "quantity %d: %v", qty, err)
	}

	// Each line fits on its own; their sum does not.
	dough, err := f.store.AddProduct(ctx, "Dough", types.MustMoney("1"),
		memory.Use{Ingredient: f.flour, PerUnit: types.Quantity(1 << 32)})
	require.NoError(t, err)
	_, err = f.engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: dough.ID, Quantity: catalog.MaxUnits},
		deduction.Line{ProductID: dough.ID, Quantity: catalog.MaxUnits},
	), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "%v", err)

	assert.Equal(t, grams(1000), f.stock(t, f.flour))
	assert.Empty(t, f.store.Ledger().All())
}

func TestDeductForOrder_RollsBackOnLedgerFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := newEngine(f.store, failingLedger{f.store.Ledger()}, nil)

	_, err := engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: f.bread.ID, Quantity: 1},
		deduction.Line{ProductID: f.cake.ID, Quantity: 1},
	), id.Nil())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTransaction))
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, grams(1000), f.stock(t, f.flour))
	assert.Equal(t, grams(500), f.stock(t, f.sugar))
	assert.Empty(t, f.store.Ledger().All())
	assert.Empty(t, f.store.Events())
}

func TestDeductForOrder_RollsBackOnPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	engine := newEngine(f.store, nil, failingPublisher{})

	_, err := engine.DeductForOrder(ctx, order(deduction.Line{ProductID: f.bread.ID, Quantity: 1}), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeTransaction))
	assert.Equal(t, grams(1000), f.stock(t, f.flour))
	assert.Empty(t, f.store.Ledger().All())
}

func TestDeductForOrder_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := order(deduction.Line{ProductID: f.bread.ID, Quantity: 2})

	_, err := f.engine.DeductForOrder(ctx, o, id.Nil())
	require.NoError(t, err)

	evs := f.store.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, events.TypeInventoryDeducted, evs[0].EventType)
	assert.Equal(t, o.ID, evs[0].AggregateID)
	payload, ok := evs[0].Payload.(events.DeductedPayload)
	require.True(t, ok)
	assert.Equal(t, "ORD-TEST0001", payload.Reference)
	require.Len(t, payload.Lines, 1)

	assert.Equal(t, events.TypeLowStock, evs[1].EventType)
	assert.Equal(t, f.flour.ID, evs[1].AggregateID)
}

func TestDeductForOrder_SimpleStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	water, err := f.store.AddSimpleProduct(ctx, "Water", types.MustMoney("10"), 3)
	require.NoError(t, err)

	res, err := f.engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: water.ID, Quantity: 2},
		deduction.Line{ProductID: f.bread.ID, Quantity: 1},
	), id.Nil())
	require.NoError(t, err)
	assert.Len(t, res.Deductions, 1)

	p, err := f.store.Products().GetByID(ctx, water.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)

	// The bread line is rolled back together with the failed water line.
	_, err = f.engine.DeductForOrder(ctx, order(
		deduction.Line{ProductID: f.bread.ID, Quantity: 1},
		deduction.Line{ProductID: water.ID, Quantity: 2},
	), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, grams(600), f.stock(t, f.flour))
}

func TestDeductForOrder_ConcurrentOrdersNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pizza, err := f.store.AddProduct(ctx, "Pizza", types.MustMoney("150"),
		memory.Use{Ingredient: f.flour, PerUnit: grams(600)})
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.DeductForOrder(ctx, order(deduction.Line{ProductID: pizza.ID, Quantity: 1}), id.Nil())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperror.HasCode(err, apperror.CodeInsufficientStock) {
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, fail)
	assert.Equal(t, grams(400), f.stock(t, f.flour))
	assert.Len(t, f.store.Ledger().All(), 1)
}

func TestDeductForPrep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	batch := deduction.PrepBatch{ID: id.New(), Name: "Morning dough", ProductID: f.bread.ID, Quantity: 2}
	actor := id.New()

	res, err := f.engine.DeductForPrep(ctx, batch, actor)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, res.ReferenceID)

	ledger := f.store.Ledger().All()
	require.Len(t, ledger, 1)
	assert.Equal(t, entity.TransactionPrep, ledger[0].Type)
	assert.Equal(t, entity.ReferencePrepBatch, *ledger[0].ReferenceType)
	assert.Equal(t, "Prep batch Morning dough: Bread", ledger[0].Notes)
	require.NotNil(t, ledger[0].RecordedBy)
	assert.Equal(t, actor, *ledger[0].RecordedBy)

	evs := f.store.Events()
	require.NotEmpty(t, evs)
	assert.Equal(t, events.AggregatePrepBatch, evs[0].AggregateType)
}
