package dto

import (
	"strings"

	"github.com/shopspring/decimal"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
	"cafepos/internal/domain/variance"
)

// WasteRequest is the body of POST /ingredients/:id/waste.
type WasteRequest struct {
	Quantity  types.Quantity `json:"quantity"`
	WasteType string         `json:"wasteType" binding:"required"`
	Reason    string         `json:"reason"`
	Notes     string         `json:"notes"`
}

// ToRequest converts to the tracker input.
func (r *WasteRequest) ToRequest(ingredientID id.ID) variance.WasteRequest {
	return variance.WasteRequest{
		IngredientID: ingredientID,
		Quantity:     r.Quantity,
		Type:         variance.WasteType(strings.ToUpper(r.WasteType)),
		Reason:       r.Reason,
		Notes:        r.Notes,
	}
}

// PhysicalCountRequest is the body of POST /ingredients/:id/counts.
type PhysicalCountRequest struct {
	PhysicalQuantity types.Quantity `json:"physicalQuantity"`
	Notes            string         `json:"notes"`
}

// PeriodQuery bounds a variance calculation. Missing bounds default in the tracker.
type PeriodQuery struct {
	From string `form:"from" json:"from"`
	To   string `form:"to" json:"to"`
}

// DaysQuery is the look-back window of reports.
type DaysQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// WasteReportQuery filters GET /reports/waste.
type WasteReportQuery struct {
	DaysQuery
	WasteType string `form:"wasteType"`
}

// Type returns the requested waste type, nil for all.
func (q *WasteReportQuery) Type() (*variance.WasteType, error) {
	if q.WasteType == "" || strings.EqualFold(q.WasteType, "ALL") {
		return nil, nil
	}
	wt := variance.WasteType(strings.ToUpper(q.WasteType))
	if !wt.Valid() {
		return nil, apperror.NewValidation("invalid waste type").WithDetail("value", q.WasteType)
	}
	return &wt, nil
}

// CriticalQuery sets the critical ratio threshold in percent.
type CriticalQuery struct {
	Threshold string `form:"threshold"`
}

// Percent parses the threshold, falling back to def.
func (q *CriticalQuery) Percent(def decimal.Decimal) (decimal.Decimal, error) {
	if q.Threshold == "" {
		return def, nil
	}
	p, err := decimal.NewFromString(q.Threshold)
	if err != nil || p.IsNegative() {
		return decimal.Zero, apperror.NewValidation("invalid threshold").WithDetail("value", q.Threshold)
	}
	return p, nil
}
