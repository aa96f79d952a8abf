package apperror

import (
	"fmt"
	"net/http"
)

func NewValidation(message string) *AppError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, entity+" not found",
		map[string]any{"entity": entity, "id": id})
}

// NewBusinessRule reports a rule-specific refusal under its own code,
// e.g. SELF_ARCHIVE.
func NewBusinessRule(code, message string) *AppError {
	return newError(code, http.StatusUnprocessableEntity, message, nil)
}

// NewMissingRecipe rejects selling a product without a bill of materials.
func NewMissingRecipe(productID any, productName string) *AppError {
	return newError(CodeMissingRecipe, http.StatusUnprocessableEntity,
		fmt.Sprintf("No recipe defined for product %q", productName),
		map[string]any{"product_id": productID, "product_name": productName})
}

// NewInsufficientStock carries the itemized shortages under "shortages".
func NewInsufficientStock(message string, shortages any) *AppError {
	return newError(CodeInsufficientStock, http.StatusUnprocessableEntity, message,
		map[string]any{"shortages": shortages})
}

// NewUnavailableIngredient is used when every shortage is a manual
// withhold rather than a lack of stock.
func NewUnavailableIngredient(message string, shortages any) *AppError {
	return newError(CodeUnavailableIngredient, http.StatusUnprocessableEntity, message,
		map[string]any{"shortages": shortages})
}

// NewTransaction wraps a persistence failure that rolled a stock operation back.
func NewTransaction(operation string, err error) *AppError {
	e := newError(CodeTransaction, http.StatusInternalServerError,
		operation+" failed, no changes were applied",
		map[string]any{"operation": operation})
	e.Err = err
	return e
}

func NewInvalidState(entity, status, action string) *AppError {
	return newError(CodeInvalidState, http.StatusUnprocessableEntity,
		fmt.Sprintf("cannot %s %s in status %s", action, entity, status),
		map[string]any{"entity": entity, "status": status, "action": action})
}

// NewInternal hides err from the client; it is only logged.
func NewInternal(err error) *AppError {
	e := newError(CodeInternal, http.StatusInternalServerError, "Internal server error", nil)
	e.Err = err
	return e
}

func NewUnauthorized(message string) *AppError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func NewForbidden(message string) *AppError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NewIdempotencyConflict is returned while the first request with key is
// still running.
func NewIdempotencyConflict(key string) *AppError {
	return newError(CodeIdempotency, http.StatusConflict, "Operation already in progress or completed",
		map[string]any{"idempotency_key": key})
}

// NewIdempotencyMismatch is returned when key is reused by another staff
// member, route or body.
func NewIdempotencyMismatch(key string) *AppError {
	return newError(CodeIdempotency, http.StatusConflict, "Idempotency key mismatch",
		map[string]any{"idempotency_key": key})
}

func NewDuplicate(entity, field, value string) *AppError {
	return newError(CodeDuplicate, http.StatusConflict,
		fmt.Sprintf("%s with this %s already exists", entity, field),
		map[string]any{"entity": entity, "field": field, "value": value})
}
