package dto

import (
	"strings"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/entity"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/inventory"
)

// CreateIngredientRequest creates an ingredient.
type CreateIngredientRequest struct {
	Name              string         `json:"name" binding:"required"`
	Unit              string         `json:"unit" binding:"required,oneof=g ml pcs"`
	CurrentStock      types.Quantity `json:"currentStock"`
	MinStock          types.Quantity `json:"minStock"`
	VarianceAllowance *types.Percent `json:"varianceAllowance"`
}

// ToEntity converts the request.
func (r *CreateIngredientRequest) ToEntity() *inventory.Ingredient {
	ing := inventory.NewIngredient(r.Name, inventory.Unit(r.Unit), r.CurrentStock, r.MinStock)
	if r.VarianceAllowance != nil {
		ing.VarianceAllowance = *r.VarianceAllowance
	}
	return ing
}

// IngredientListQuery filters GET /ingredients.
type IngredientListQuery struct {
	PaginationRequest
	Search    string `form:"search"`
	All       bool   `form:"all"`
	LowOnly   bool   `form:"low"`
	Available *bool  `form:"available"`
}

// ToFilter converts to the domain filter. Inactive ingredients are hidden unless all=true.
func (q *IngredientListQuery) ToFilter() inventory.ListFilter {
	q.Defaults()
	return inventory.ListFilter{
		Search:     q.Search,
		OnlyActive: !q.All,
		OnlyLow:    q.LowOnly,
		Available:  q.Available,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
}

// SetAvailabilityRequest sets the override. A missing value toggles it.
type SetAvailabilityRequest struct {
	Available *bool `json:"available"`
}

// HistoryQuery filters GET /ingredients/:id/history.
type HistoryQuery struct {
	PaginationRequest
	Types []string `form:"type"`
	From  string   `form:"from"`
	To    string   `form:"to"`
}

// ToFilter converts to the ledger filter.
func (q *HistoryQuery) ToFilter() (entity.LedgerFilter, error) {
	q.Defaults()
	f := entity.LedgerFilter{Limit: q.Limit, Offset: q.Offset}

	var err error
	if f.From, err = ParseTime("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = ParseTime("to", q.To); err != nil {
		return f, err
	}
	for _, t := range q.Types {
		tt := entity.TransactionType(strings.ToUpper(t))
		if !tt.Valid() {
			return f, apperror.NewValidation("unknown transaction type").WithDetail("type", t)
		}
		f.Types = append(f.Types, tt)
	}
	return f, nil
}

// LowStockResponse is an ingredient below its reorder threshold.
type LowStockResponse struct {
	*inventory.Ingredient
	StockRatio string `json:"stockRatio"`
}

// FromLowStock attaches the current/min ratio in percent.
func FromLowStock(list []*inventory.Ingredient) []LowStockResponse {
	out := make([]LowStockResponse, 0, len(list))
	for _, ing := range list {
		out = append(out, LowStockResponse{Ingredient: ing, StockRatio: ing.StockRatio().StringFixed(2)})
	}
	return out
}
