package availability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/infrastructure/storage/memory"
)

type fixture struct {
	store   *memory.Store
	checker *availability.Checker
	flour   *inventory.Ingredient
	bread   *catalog.Product
}

// newFixture stocks 1000 g of flour and a bread needing 400 g per loaf.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	flour, err := s.AddIngredient(ctx, "Flour", inventory.UnitGram, types.NewQuantityFromInt(1000), types.NewQuantityFromInt(100))
	require.NoError(t, err)
	bread, err := s.AddProduct(ctx, "Bread", types.MustMoney("50"),
		memory.Use{Ingredient: flour, PerUnit: types.NewQuantityFromInt(400)})
	require.NoError(t, err)

	return &fixture{
		store:   s,
		checker: availability.NewChecker(s.Products(), s.Recipes(), s.Ingredients()),
		flour:   flour,
		bread:   bread,
	}
}

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.checker.CheckAvailability(ctx, f.bread.ID, 2)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.True(t, res.HasRecipe)
	assert.Empty(t, res.Shortages)

	res, err = f.checker.CheckAvailability(ctx, f.bread.ID, 3)
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Shortages, 1)
	s := res.Shortages[0]
	assert.Equal(t, "Flour", s.Ingredient)
	assert.Equal(t, types.NewQuantityFromInt(1200), s.Needed)
	assert.Equal(t, types.NewQuantityFromInt(1000), s.Available)
	assert.Equal(t, types.NewQuantityFromInt(200), s.Shortage)
	assert.Equal(t, availability.ReasonInsufficientStock, s.Reason)
	assert.Equal(t, 1, res.TotalShortages)
}

func TestCheckAvailability_DoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.checker.CheckAvailability(ctx, f.bread.ID, 3)
	require.NoError(t, err)
	second, err := f.checker.CheckAvailability(ctx, f.bread.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ing, err := f.store.Ingredients().GetByID(ctx, f.flour.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(1000), ing.CurrentStock)
	assert.Empty(t, f.store.Ledger().All())
}

func TestCheckAvailability_NoRecipe(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bare, err := f.store.AddProduct(ctx, "Mystery", types.MustMoney("1"))
	require.NoError(t, err)

	res, err := f.checker.CheckAvailability(ctx, bare.ID, 1)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.False(t, res.HasRecipe)
	assert.Equal(t, "No recipe defined for Mystery", res.Error)
}

func TestCheckAvailability_Unavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Ingredients().SetAvailability(ctx, f.flour.ID, false))

	res, err := f.checker.CheckAvailability(ctx, f.bread.ID, 1)
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Shortages, 1)
	assert.True(t, res.Shortages[0].IsManualOverride())
	assert.Equal(t, types.Quantity(0), res.Shortages[0].Available)
}

func TestCheckAvailability_InvalidQuantity(t *testing.T) {
	f := newFixture(t)
	_, err := f.checker.CheckAvailability(context.Background(), f.bread.ID, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCheckAvailability_SimpleStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	water, err := f.store.AddSimpleProduct(ctx, "Water", types.MustMoney("10"), 3)
	require.NoError(t, err)

	res, err := f.checker.CheckAvailability(ctx, water.ID, 3)
	require.NoError(t, err)
	assert.True(t, res.Available)

	res, err = f.checker.CheckAvailability(ctx, water.ID, 4)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, types.NewQuantityFromInt(1), res.Shortages[0].Shortage)
}

func TestCheckOrderAvailability(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bare, err := f.store.AddProduct(ctx, "Mystery", types.MustMoney("1"))
	require.NoError(t, err)

	// Each item fits alone; shortages are per item, not netted.
	res, err := f.checker.CheckOrderAvailability(ctx, []availability.Item{
		{ProductID: f.bread.ID, Quantity: 2},
		{ProductID: f.bread.ID, Quantity: 2},
	})
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Len(t, res.Items, 2)

	res, err = f.checker.CheckOrderAvailability(ctx, []availability.Item{
		{ProductID: f.bread.ID, Quantity: 3},
		{ProductID: bare.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Shortages, 2)
	assert.Equal(t, "Bread", res.Shortages[0].Product)
	assert.Equal(t, "Mystery", res.Shortages[1].Product)
	assert.Equal(t, "No recipe defined for Mystery", res.Shortages[1].Reason)
}

func TestCheckAvailability_RejectsOverflowingDemand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 400 g a loaf times these counts wraps an int64 of 1e-4 g.
	for _, qty := range []int{4_611_686_018_427, 4_611_686_018_428} {
		_, err := f.checker.CheckAvailability(ctx, f.bread.ID, qty)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "quantity %d: %v", qty, err)
	}

	_, err := f.checker.CheckAvailability(ctx, f.bread.ID, catalog.MaxUnits+1)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestEvaluate_OverflowWithinUnitBound(t *testing.T) {
	huge := &catalog.Recipe{Lines: []catalog.RecipeLine{{
		IngredientName:  "Flour",
		QuantityPerUnit: types.Quantity(1 << 40),
	}}}

	_, err := availability.Evaluate(huge, catalog.MaxUnits, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestEvaluate_InactiveIngredient(t *testing.T) {
	flour := inventory.NewIngredient("Flour", inventory.UnitGram, types.NewQuantityFromInt(1000), 0)
	flour.IsActive = false
	recipe := &catalog.Recipe{Lines: []catalog.RecipeLine{{
		IngredientID:    flour.ID,
		IngredientName:  "Flour",
		Unit:            "g",
		QuantityPerUnit: types.NewQuantityFromInt(400),
	}}}

	shortages, err := availability.Evaluate(recipe, 1, map[id.ID]*inventory.Ingredient{flour.ID: flour})
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, availability.ReasonInactive, shortages[0].Reason)
	assert.Equal(t, types.NewQuantityFromInt(400), shortages[0].Shortage)

	shortages, err = availability.Evaluate(recipe, 1, map[id.ID]*inventory.Ingredient{})
	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, availability.ReasonMissingIngredient, shortages[0].Reason)
}

func TestCheckOrderAvailability_UnknownProductIsAShortage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ghost := id.New()

	res, err := f.checker.CheckOrderAvailability(ctx, []availability.Item{
		{ProductID: ghost, Quantity: 1},
		{ProductID: f.bread.ID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Items, 2)
	require.Len(t, res.Shortages, 2)
	assert.Equal(t, "Product #"+ghost.String(), res.Shortages[0].Product)
	assert.Equal(t, availability.ReasonMissingProduct, res.Shortages[0].Reason)
	assert.Equal(t, "Bread", res.Shortages[1].Product)
	assert.Equal(t, "Flour", res.Shortages[1].Ingredient)
}
