package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafepos/internal/core/tx"
)

type recordingManager struct {
	runs      int
	readOnly  int
	committed bool
}

func (m *recordingManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.runs++
	err := fn(ctx)
	m.committed = err == nil
	return err
}

type readOnlyManager struct {
	recordingManager
}

func (m *readOnlyManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	m.readOnly++
	return fn(ctx)
}

func TestRun_ReturnsValueOnCommit(t *testing.T) {
	m := &recordingManager{}

	got, err := tx.Run(context.Background(), m, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.True(t, m.committed)
}

func TestRun_DropsValueOnRollback(t *testing.T) {
	m := &recordingManager{}
	boom := errors.New("boom")

	got, err := tx.Run(context.Background(), m, func(context.Context) (*int, error) {
		v := 7
		return &v, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.False(t, m.committed)
}

func TestSnapshot_PrefersReadOnly(t *testing.T) {
	ro := &readOnlyManager{}
	require.NoError(t, tx.Snapshot(context.Background(), ro, func(context.Context) error { return nil }))
	assert.Equal(t, 1, ro.readOnly)
	assert.Zero(t, ro.runs)

	rw := &recordingManager{}
	require.NoError(t, tx.Snapshot(context.Background(), rw, func(context.Context) error { return nil }))
	assert.Equal(t, 1, rw.runs)
}
