// Package variance tracks waste, physical counts and the variance between
// theoretical and actual ingredient usage.
package variance

import (
	"time"

	"github.com/shopspring/decimal"

	"cafepos/internal/core/entity"
	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// WasteType classifies a waste log.
type WasteType string

const (
	WasteSpoilage WasteType = "SPOILAGE"
	WasteWaste    WasteType = "WASTE"
	WasteFreebie  WasteType = "FREEBIE"
	WasteSample   WasteType = "SAMPLE"
	WasteOther    WasteType = "OTHER"
)

// WasteTypes lists every waste type.
var WasteTypes = []WasteType{WasteSpoilage, WasteWaste, WasteFreebie, WasteSample, WasteOther}

// Valid reports whether t is a known waste type.
func (t WasteType) Valid() bool {
	for _, known := range WasteTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LedgerType maps a waste type to the ledger entry type it produces.
func (t WasteType) LedgerType() entity.TransactionType {
	if t == WasteFreebie {
		return entity.TransactionFreebie
	}
	return entity.TransactionWaste
}

// WasteLog records ingredient loss that did not go through a sale.
type WasteLog struct {
	ID           id.ID          `db:"id" json:"id"`
	IngredientID id.ID          `db:"ingredient_id" json:"ingredientId"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	WasteType    WasteType      `db:"waste_type" json:"wasteType"`
	Reason       string         `db:"reason" json:"reason"`
	Notes        string         `db:"notes" json:"notes"`
	ReportedBy   *id.ID         `db:"reported_by" json:"reportedBy,omitempty"`
	WasteDate    time.Time      `db:"waste_date" json:"wasteDate"`

	// CostImpact is always zero.
	CostImpact types.Money `db:"cost_impact" json:"costImpact"`
}

// PhysicalCount is a human count paired with the ledger-derived stock at that moment.
type PhysicalCount struct {
	ID                  id.ID           `db:"id" json:"id"`
	IngredientID        id.ID           `db:"ingredient_id" json:"ingredientId"`
	PhysicalQuantity    types.Quantity  `db:"physical_quantity" json:"physicalQuantity"`
	TheoreticalQuantity types.Quantity  `db:"theoretical_quantity" json:"theoreticalQuantity"`
	Variance            types.Quantity  `db:"variance" json:"variance"`
	VariancePercentage  decimal.Decimal `db:"variance_percentage" json:"variancePercentage"`
	WithinTolerance     bool            `db:"within_tolerance" json:"withinTolerance"`
	Notes               string          `db:"notes" json:"notes"`
	CountedBy           *id.ID          `db:"counted_by" json:"countedBy,omitempty"`
	CountedAt           time.Time       `db:"counted_at" json:"countedAt"`
}

// Record is a stored period variance.
type Record struct {
	ID                 id.ID           `db:"id" json:"id"`
	IngredientID       id.ID           `db:"ingredient_id" json:"ingredientId"`
	PeriodStart        time.Time       `db:"period_start" json:"periodStart"`
	PeriodEnd          time.Time       `db:"period_end" json:"periodEnd"`
	TheoreticalUsed    types.Quantity  `db:"theoretical_used" json:"theoreticalUsed"`
	ActualWaste        types.Quantity  `db:"actual_waste" json:"actualWaste"`
	Variance           types.Quantity  `db:"variance" json:"variance"`
	VariancePercentage decimal.Decimal `db:"variance_percentage" json:"variancePercentage"`
	WithinTolerance    bool            `db:"within_tolerance" json:"withinTolerance"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
}

// FormulaDeductionsVsWaste names the variance formula in use: DEDUCTION
// ledger entries compared with waste logs. ADJUSTMENT and PREP movements
// are not part of actual usage.
const FormulaDeductionsVsWaste = "deductions_vs_waste"

// Result is a computed period variance.
type Result struct {
	IngredientID       id.ID           `json:"ingredientId"`
	Ingredient         string          `json:"ingredient"`
	PeriodStart        time.Time       `json:"periodStart"`
	PeriodEnd          time.Time       `json:"periodEnd"`
	TheoreticalUsed    types.Quantity  `json:"theoreticalUsed"`
	ActualWaste        types.Quantity  `json:"actualWaste"`
	Variance           types.Quantity  `json:"variance"`
	VariancePercentage decimal.Decimal `json:"variancePercentage"`
	Tolerance          types.Percent   `json:"tolerance"`
	WithinTolerance    bool            `json:"withinTolerance"`
	Formula            string          `json:"formula"`
}

// Totals is a count and quantity pair used by reports.
type Totals struct {
	Count    int            `json:"count"`
	Quantity types.Quantity `json:"quantity"`
}

// UsageReport summarizes an ingredient's movements over a period.
type UsageReport struct {
	IngredientID       id.ID                             `json:"ingredientId"`
	Ingredient         string                            `json:"ingredient"`
	Unit               string                            `json:"unit"`
	PeriodDays         int                               `json:"periodDays"`
	PeriodStart        time.Time                         `json:"periodStart"`
	PeriodEnd          time.Time                         `json:"periodEnd"`
	TransactionsByType map[entity.TransactionType]Totals `json:"transactionsByType"`
	WasteByType        map[WasteType]Totals              `json:"wasteByType"`
	TotalTransactions  int                               `json:"totalTransactions"`
	CurrentStock       types.Quantity                    `json:"currentStock"`
}

// WasteReport lists recent waste and per-type totals.
type WasteReport struct {
	PeriodDays int                  `json:"periodDays"`
	WasteType  *WasteType           `json:"wasteType,omitempty"`
	Recent     []WasteLog           `json:"recent"`
	ByType     map[WasteType]Totals `json:"byType"`
	Total      Totals               `json:"total"`
}

// IngredientVariance is one ingredient's row of the variance analysis.
type IngredientVariance struct {
	IngredientID      id.ID           `json:"ingredientId"`
	Ingredient        string          `json:"ingredient"`
	RecordCount       int             `json:"recordCount"`
	AvgVariance       decimal.Decimal `json:"avgVariance"`
	MaxVariance       decimal.Decimal `json:"maxVariance"`
	MinVariance       decimal.Decimal `json:"minVariance"`
	WithinCount       int             `json:"withinCount"`
	WithinPercentage  decimal.Decimal `json:"withinPercentage"`
	VarianceAllowance types.Percent   `json:"varianceAllowance"`
	Latest            []Record        `json:"latest"`
}

// Analysis is the variance report across all active ingredients.
type Analysis struct {
	PeriodDays       int                  `json:"periodDays"`
	Ingredients      []IngredientVariance `json:"ingredients"`
	OverallAverage   decimal.Decimal      `json:"overallAverage"`
	Best             []IngredientVariance `json:"best"`
	OutsideTolerance []IngredientVariance `json:"outsideTolerance"`
}

// WasteRequest is the input of LogWaste.
type WasteRequest struct {
	IngredientID id.ID
	Quantity     types.Quantity
	Type         WasteType
	Reason       string
	Notes        string
}
