// Package entity provides core domain entities shared across packages.
package entity

import (
	"time"

	"cafepos/internal/core/id"
	"cafepos/internal/core/types"
)

// TransactionType classifies a stock ledger entry.
// Quantity is always the magnitude moved; the type implies direction.
type TransactionType string

const (
	TransactionPurchase   TransactionType = "PURCHASE"
	TransactionDeduction  TransactionType = "DEDUCTION"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
	TransactionWaste      TransactionType = "WASTE"
	TransactionFreebie    TransactionType = "FREEBIE"
	TransactionPrep       TransactionType = "PREP"
)

// TransactionTypes lists every ledger type in display order.
var TransactionTypes = []TransactionType{
	TransactionPurchase,
	TransactionDeduction,
	TransactionAdjustment,
	TransactionWaste,
	TransactionFreebie,
	TransactionPrep,
}

// Valid reports whether t is a known ledger type.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ReferenceType names the record that caused a ledger entry.
type ReferenceType string

const (
	ReferenceOrder         ReferenceType = "order"
	ReferenceWasteLog      ReferenceType = "waste_log"
	ReferencePhysicalCount ReferenceType = "physical_count"
	ReferencePrepBatch     ReferenceType = "prep_batch"
)

// StockTransaction is an immutable ledger entry for one ingredient movement.
// Entries are appended, never updated or deleted.
type StockTransaction struct {
	ID           id.ID           `db:"id" json:"id"`
	IngredientID id.ID           `db:"ingredient_id" json:"ingredientId"`
	Type         TransactionType `db:"transaction_type" json:"transactionType"`
	Quantity     types.Quantity  `db:"quantity" json:"quantity"`

	// UnitCost is always zero: ingredient costing is not tracked.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	ReferenceType *ReferenceType `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *id.ID         `db:"reference_id" json:"referenceId,omitempty"`
	Notes         string         `db:"notes" json:"notes"`
	RecordedBy    *id.ID         `db:"recorded_by" json:"recordedBy,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// NewStockTransaction creates a ledger entry with a fresh ID and timestamp.
// A nil actor is recorded as "no user" (system jobs).
func NewStockTransaction(
	ingredientID id.ID,
	txType TransactionType,
	quantity types.Quantity,
	refType ReferenceType,
	refID id.ID,
	notes string,
	actor id.ID,
) StockTransaction {
	t := StockTransaction{
		ID:           id.New(),
		IngredientID: ingredientID,
		Type:         txType,
		Quantity:     quantity,
		UnitCost:     types.MustMoney("0"),
		Notes:        notes,
		CreatedAt:    Now(),
	}
	if refType != "" {
		rt := refType
		t.ReferenceType = &rt
	}
	if !id.IsNil(refID) {
		rid := refID
		t.ReferenceID = &rid
	}
	if !id.IsNil(actor) {
		a := actor
		t.RecordedBy = &a
	}
	return t
}

// Decreases reports whether the entry removes stock.
// ADJUSTMENT entries are unsigned; their direction lives in the physical count they reference.
func (t *StockTransaction) Decreases() bool {
	switch t.Type {
	case TransactionDeduction, TransactionWaste, TransactionFreebie, TransactionPrep:
		return true
	}
	return false
}

// LedgerFilter narrows ledger queries.
type LedgerFilter struct {
	IngredientID *id.ID
	Types        []TransactionType
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}
