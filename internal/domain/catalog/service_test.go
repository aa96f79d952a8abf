package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/types"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/domain/inventory"
	"cafepos/internal/infrastructure/storage/memory"
)

func newService(s *memory.Store) *catalog.Service {
	return catalog.NewService(s, s.Products(), s.Recipes(), s.Ingredients())
}

func TestCalculatedStock(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	flour, err := s.AddIngredient(ctx, "Flour", inventory.UnitGram, types.NewQuantityFromInt(1000), 0)
	require.NoError(t, err)
	eggs, err := s.AddIngredient(ctx, "Eggs", inventory.UnitPiece, types.NewQuantityFromInt(5), 0)
	require.NoError(t, err)

	cake, err := s.AddProduct(ctx, "Cake", types.MustMoney("120"),
		memory.Use{Ingredient: flour, PerUnit: types.NewQuantityFromInt(200)},
		memory.Use{Ingredient: eggs, PerUnit: types.NewQuantityFromInt(2)},
	)
	require.NoError(t, err)
	bare, err := s.AddProduct(ctx, "Mystery", types.MustMoney("10"))
	require.NoError(t, err)
	water, err := s.AddSimpleProduct(ctx, "Bottled water", types.MustMoney("20"), 12)
	require.NoError(t, err)

	svc := newService(s)

	n, err := svc.CalculatedStock(ctx, cake)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = svc.CalculatedStock(ctx, bare)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = svc.CalculatedStock(ctx, water)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	rows, err := svc.ListProducts(ctx, catalog.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byName := make(map[string]catalog.ProductWithStock)
	for _, r := range rows {
		byName[r.Name] = r
	}
	assert.Equal(t, int64(2), byName["Cake"].CalculatedStock)
	assert.True(t, byName["Cake"].HasRecipe)
	assert.False(t, byName["Mystery"].HasRecipe)
	assert.Equal(t, int64(0), byName["Mystery"].CalculatedStock)
	assert.Equal(t, int64(12), byName["Bottled water"].CalculatedStock)

	one, err := svc.GetProductWithStock(ctx, cake.ID)
	require.NoError(t, err)
	assert.True(t, one.HasRecipe)
	assert.Equal(t, int64(2), one.CalculatedStock)

	one, err = svc.GetProductWithStock(ctx, bare.ID)
	require.NoError(t, err)
	assert.False(t, one.HasRecipe)
	assert.Equal(t, int64(0), one.CalculatedStock)
}

func TestCreateProduct_RejectsInvalidRecipe(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	flour, err := s.AddIngredient(ctx, "Flour", inventory.UnitGram, types.NewQuantityFromInt(1000), 0)
	require.NoError(t, err)

	p := catalog.NewProduct("Crumb", "", types.MustMoney("5"))
	recipe := &catalog.Recipe{Lines: []catalog.RecipeLine{{IngredientID: flour.ID, QuantityPerUnit: 1}}}

	err = newService(s).CreateProduct(ctx, p, recipe)
	require.Error(t, err)

	_, err = s.Products().GetByID(ctx, p.ID)
	assert.Error(t, err, "product must not be stored when the recipe is rejected")
}
