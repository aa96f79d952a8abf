package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/infrastructure/storage/memory"
)

func TestIngredient_Validate(t *testing.T) {
	ctx := context.Background()

	ok := inventory.NewIngredient("Milk", inventory.UnitMilliliter, types.NewQuantityFromInt(1), 0)
	assert.NoError(t, ok.Validate(ctx))
	assert.True(t, ok.IsAvailable)
	assert.True(t, ok.VarianceAllowance.Equal(types.MustPercent("10")))

	bad := inventory.NewIngredient("Milk", "litre", 0, 0)
	assert.True(t, apperror.HasCode(bad.Validate(ctx), apperror.CodeValidation))

	neg := inventory.NewIngredient("Milk", inventory.UnitGram, types.MustQuantity("-1"), 0)
	assert.Error(t, neg.Validate(ctx))

	low := inventory.NewIngredient("Milk", inventory.UnitGram, types.NewQuantityFromInt(5), types.NewQuantityFromInt(10))
	assert.True(t, low.IsLowStock())
	at := inventory.NewIngredient("Oat", inventory.UnitGram, types.NewQuantityFromInt(10), types.NewQuantityFromInt(10))
	assert.False(t, at.IsLowStock())
}

func TestSetAvailability(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := inventory.NewService(s, s.Ingredients(), s.Ledger(), s)

	milk := inventory.NewIngredient("Milk", inventory.UnitMilliliter, types.NewQuantityFromInt(500), 0)
	require.NoError(t, svc.Create(ctx, milk))

	got, err := svc.SetAvailability(ctx, milk.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.Equal(t, types.NewQuantityFromInt(500), got.CurrentStock)
	require.Len(t, s.AuditEntries(), 1)

	// Setting the same value again is a no-op.
	_, err = svc.SetAvailability(ctx, milk.ID, false)
	require.NoError(t, err)
	assert.Len(t, s.AuditEntries(), 1)

	got, err = svc.ToggleAvailability(ctx, milk.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	assert.Len(t, s.AuditEntries(), 2)

	_, err = svc.SetAvailability(ctx, id.New(), true)
	assert.True(t, apperror.IsNotFound(err))

	available := true
	list, err := svc.List(ctx, inventory.ListFilter{Available: &available})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_DuplicateName(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := inventory.NewService(s, s.Ingredients(), s.Ledger(), s)

	require.NoError(t, svc.Create(ctx, inventory.NewIngredient("Milk", inventory.UnitMilliliter, 0, 0)))
	err := svc.Create(ctx, inventory.NewIngredient("milk", inventory.UnitMilliliter, 0, 0))
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := inventory.NewService(s, s.Ingredients(), s.Ledger(), s)

	milk := inventory.NewIngredient("Milk", inventory.UnitMilliliter, types.NewQuantityFromInt(500), 0)
	require.NoError(t, svc.Create(ctx, milk))
	other := inventory.NewIngredient("Oat", inventory.UnitMilliliter, types.NewQuantityFromInt(500), 0)
	require.NoError(t, svc.Create(ctx, other))

	first := entity.NewStockTransaction(milk.ID, entity.TransactionPurchase, types.NewQuantityFromInt(500), "", id.Nil(), "opening", id.Nil())
	second := entity.NewStockTransaction(milk.ID, entity.TransactionWaste, types.NewQuantityFromInt(5), "", id.Nil(), "spill", id.Nil())
	second.CreatedAt = first.CreatedAt.Add(1)
	require.NoError(t, s.Ledger().Append(ctx, first, second,
		entity.NewStockTransaction(other.ID, entity.TransactionPurchase, types.NewQuantityFromInt(1), "", id.Nil(), "", id.Nil())))

	entries, err := svc.History(ctx, milk.ID, entity.LedgerFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "spill", entries[0].Notes)
	assert.Nil(t, entries[0].ReferenceType)

	entries, err = svc.History(ctx, milk.ID, entity.LedgerFilter{Types: []entity.TransactionType{entity.TransactionPurchase}})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	err = s.Ledger().Append(ctx, entity.NewStockTransaction(milk.ID, "REFUND", 1, "", id.Nil(), "", id.Nil()))
	assert.Error(t, err)
}
