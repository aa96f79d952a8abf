// Package inventory provides ingredients and the stock ledger.
package inventory

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// Unit is the unit of measure an ingredient is tracked in.
type Unit string

const (
	UnitGram       Unit = "g"
	UnitMilliliter Unit = "ml"
	UnitPiece      Unit = "pcs"
)

// DefaultVarianceAllowance is the portioning tolerance applied when none is given (10%).
var DefaultVarianceAllowance = types.MustPercent("10")

// Ingredient is a raw material consumed by recipes.
type Ingredient struct {
	ID   id.ID  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Unit Unit   `db:"unit" json:"unit"`

	// CurrentStock never goes below zero at a committed state.
	CurrentStock types.Quantity `db:"current_stock" json:"currentStock"`

	// MinStock is the reorder threshold.
	MinStock types.Quantity `db:"min_stock" json:"minStock"`

	// VarianceAllowance is the tolerated count drift in percent.
	VarianceAllowance types.Percent `db:"variance_allowance" json:"varianceAllowance"`

	// IsActive is false for soft-deleted ingredients.
	IsActive bool `db:"is_active" json:"isActive"`

	// IsAvailable is a manual override: an unavailable ingredient blocks sales
	// regardless of stock.
	IsAvailable bool `db:"is_available" json:"isAvailable"`

	entity.Timestamps
}

// NewIngredient creates an active, available ingredient with the default allowance.
func NewIngredient(name string, unit Unit, stock, minStock types.Quantity) *Ingredient {
	return &Ingredient{
		ID:                id.New(),
		Name:              name,
		Unit:              unit,
		CurrentStock:      stock,
		MinStock:          minStock,
		VarianceAllowance: DefaultVarianceAllowance,
		IsActive:          true,
		IsAvailable:       true,
		Timestamps:        entity.NewTimestamps(),
	}
}

// Validate implements entity.Validatable.
func (i *Ingredient) Validate(_ context.Context) error {
	if strings.TrimSpace(i.Name) == "" {
		return apperror.NewValidation("ingredient name is required").WithDetail("field", "name")
	}
	if !isValidUnit(i.Unit) {
		return apperror.NewValidation("invalid unit").
			WithDetail("field", "unit").
			WithDetail("value", string(i.Unit))
	}
	if i.CurrentStock.IsNegative() {
		return apperror.NewValidation("current stock cannot be negative").WithDetail("field", "currentStock")
	}
	if i.MinStock.IsNegative() {
		return apperror.NewValidation("min stock cannot be negative").WithDetail("field", "minStock")
	}
	if i.VarianceAllowance.IsNegative() {
		return apperror.NewValidation("variance allowance cannot be negative").WithDetail("field", "varianceAllowance")
	}
	return nil
}

// IsLowStock reports current stock strictly below the reorder threshold.
func (i *Ingredient) IsLowStock() bool {
	return i.CurrentStock < i.MinStock
}

// StockRatio returns current/min*100, or zero when no threshold is set.
func (i *Ingredient) StockRatio() decimal.Decimal {
	return types.VariancePercent(i.CurrentStock, i.MinStock)
}

func isValidUnit(u Unit) bool {
	switch u {
	case UnitGram, UnitMilliliter, UnitPiece:
		return true
	}
	return false
}
