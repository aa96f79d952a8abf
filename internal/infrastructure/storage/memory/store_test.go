package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/types"
	"cafepos/internal/domain/inventory"
)

func TestRunInTransaction_WritesInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := New()
	milk, err := s.AddIngredient(ctx, "Milk", inventory.UnitMilliliter, types.NewQuantityFromInt(1000), 0)
	require.NoError(t, err)

	written := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.Ingredients().UpdateStock(ctx, milk.ID, types.NewQuantityFromInt(850)); err != nil {
				return err
			}
			inTx, err := s.Ingredients().GetByID(ctx, milk.ID)
			if err != nil {
				return err
			}
			if inTx.CurrentStock != types.NewQuantityFromInt(850) {
				return errors.New("transaction does not see its own write")
			}
			close(written)
			<-release
			return nil
		})
	}()

	select {
	case <-written:
	case err := <-done:
		t.Fatalf("transaction ended early: %v", err)
	}
	outside, err := s.Ingredients().GetByID(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(1000), outside.CurrentStock)

	close(release)
	require.NoError(t, <-done)

	after, err := s.Ingredients().GetByID(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(850), after.CurrentStock)
}

func TestRunInTransaction_FailureDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	milk, err := s.AddIngredient(ctx, "Milk", inventory.UnitMilliliter, types.NewQuantityFromInt(1000), 0)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Ingredients().UpdateStock(ctx, milk.ID, 0))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Ingredients().GetByID(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(1000), got.CurrentStock)
}
