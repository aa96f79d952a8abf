package dto

import (
	"cafepos/internal/core/id"
	"cafepos/internal/domain/deduction"
	"cafepos/internal/domain/prep"
)

// PlanBatchRequest is the body of POST /prep-batches.
type PlanBatchRequest struct {
	Name      string `json:"name"`
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=2147483647"`
	Notes     string `json:"notes"`
}

// ToRequest converts to the domain request.
func (r *PlanBatchRequest) ToRequest() (prep.PlanRequest, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return prep.PlanRequest{}, err
	}
	return prep.PlanRequest{
		Name:      r.Name,
		ProductID: productID,
		Quantity:  r.Quantity,
		Notes:     r.Notes,
	}, nil
}

// BatchResponse is a batch with its expected ingredient usage.
type BatchResponse struct {
	*prep.Batch
	ExpectedUsage []prep.Usage `json:"expectedUsage,omitempty"`
}

// CompleteBatchResponse is a completed batch and the stock it consumed.
type CompleteBatchResponse struct {
	Batch     *prep.Batch       `json:"batch"`
	Deduction *deduction.Result `json:"deduction"`
}
