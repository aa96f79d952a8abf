package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("checkout: %w", NewInsufficientStock("not enough milk", []string{"milk"}))

	assert.True(t, HasCode(err, CodeInsufficientStock))
	assert.False(t, HasCode(err, CodeUnavailableIngredient))
	assert.Equal(t, http.StatusUnprocessableEntity, Status(err))
}

func TestStatus_UnclassifiedIsInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("boom")))
	assert.False(t, IsAppError(errors.New("boom")))
}

func TestNewTransaction_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransaction("deduction", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "TRANSACTION_ERROR: deduction failed, no changes were applied: connection reset", err.Error())
	assert.Equal(t, "deduction", err.Details["operation"])
}

func TestWithDetail_Chains(t *testing.T) {
	err := NewValidation("invalid id").WithDetail("field", "id").WithDetail("value", "x")

	assert.Equal(t, map[string]any{"field": "id", "value": "x"}, err.Details)
	assert.Equal(t, "VALIDATION_ERROR: invalid id", err.Error())
}
