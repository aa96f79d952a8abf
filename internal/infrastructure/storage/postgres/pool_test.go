package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolStats_Saturated(t *testing.T) {
	assert.False(t, PoolStats{MaxConns: 20, AcquiredConns: 19}.Saturated())
	assert.True(t, PoolStats{MaxConns: 20, AcquiredConns: 20}.Saturated())
	assert.False(t, PoolStats{}.Saturated())
}
