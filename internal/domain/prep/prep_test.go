package prep_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/prep"
	"cafepos/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) (*prep.Service, *memory.Store, *inventory.Ingredient, *catalog.Product) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	dough, err := s.AddIngredient(ctx, "Dough", inventory.UnitGram, types.NewQuantityFromInt(1000), 0)
	require.NoError(t, err)
	croissant, err := s.AddProduct(ctx, "Croissant", types.MustMoney("35"),
		memory.Use{Ingredient: dough, PerUnit: types.NewQuantityFromInt(80)})
	require.NoError(t, err)

	engine := deduction.NewEngine(deduction.Config{
		TxManager:   s,
		Products:    s.Products(),
		Recipes:     s.Recipes(),
		Ingredients: s.Ingredients(),
		Ledger:      s.Ledger(),
		Events:      s,
	})
	return prep.NewService(s, s.Batches(), s.Recipes(), engine), s, dough, croissant
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, s, dough, croissant := newService(t)
	baker := id.New()

	b, err := svc.Plan(ctx, prep.PlanRequest{ProductID: croissant.ID, Quantity: 10}, baker)
	require.NoError(t, err)
	assert.Equal(t, prep.StatusPlanned, b.Status)
	assert.Equal(t, "Croissant x10", b.Name)

	usage, err := svc.ExpectedUsage(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, types.NewQuantityFromInt(800), usage[0].Quantity)
	assert.Equal(t, "Dough", usage[0].Ingredient)

	b, err = svc.Start(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, prep.StatusInProgress, b.Status)
	require.NotNil(t, b.PrepStart)

	b, res, err := svc.Complete(ctx, b.ID, baker)
	require.NoError(t, err)
	assert.Equal(t, prep.StatusCompleted, b.Status)
	require.NotNil(t, b.PrepEnd)
	require.Len(t, res.Deductions, 1)

	ing, err := s.Ingredients().GetByID(ctx, dough.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(200), ing.CurrentStock)

	ledger := s.Ledger().All()
	require.Len(t, ledger, 1)
	assert.Equal(t, entity.TransactionPrep, ledger[0].Type)
	assert.Equal(t, b.ID, *ledger[0].ReferenceID)

	_, _, err = svc.Complete(ctx, b.ID, baker)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
	_, err = svc.Cancel(ctx, b.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestComplete_ShortageLeavesBatchOpen(t *testing.T) {
	ctx := context.Background()
	svc, s, dough, croissant := newService(t)

	b, err := svc.Plan(ctx, prep.PlanRequest{Name: "Big run", ProductID: croissant.ID, Quantity: 20}, id.Nil())
	require.NoError(t, err)

	_, _, err = svc.Complete(ctx, b.ID, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	stored, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, prep.StatusPlanned, stored.Status)

	ing, err := s.Ingredients().GetByID(ctx, dough.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(1000), ing.CurrentStock)

	cancelled, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, prep.StatusCancelled, cancelled.Status)
}

func TestPlan_Validation(t *testing.T) {
	ctx := context.Background()
	svc, s, _, croissant := newService(t)

	_, err := svc.Plan(ctx, prep.PlanRequest{ProductID: croissant.ID}, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	bare, err := s.AddProduct(ctx, "Bare", types.MustMoney("1"))
	require.NoError(t, err)
	_, err = svc.Plan(ctx, prep.PlanRequest{ProductID: bare.ID, Quantity: 1}, id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRecipe))
}
