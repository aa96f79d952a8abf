package dto

import (
	"strings"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/orders"
)

// OrderItemRequest is one requested product line.
type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=2147483647"`
}

// OrderRequest is the body of POST /orders and POST /orders/checkout.
type OrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	CustomerName    string             `json:"customerName"`
	TableNumber     string             `json:"tableNumber"`
	Notes           string             `json:"notes"`
	PaymentMethod   string             `json:"paymentMethod"`
	ReferenceNumber string             `json:"referenceNumber"`
}

// ToRequest converts to the domain request. The method defaults to CASH.
func (r *OrderRequest) ToRequest() (orders.Request, error) {
	req := orders.Request{
		CustomerName:    r.CustomerName,
		TableNumber:     r.TableNumber,
		Notes:           r.Notes,
		Method:          orders.PaymentMethod(strings.ToUpper(r.PaymentMethod)),
		ReferenceNumber: r.ReferenceNumber,
	}
	if req.Method == "" {
		req.Method = orders.MethodCash
	}
	if !req.Method.Valid() {
		return req, apperror.NewValidation("invalid payment method").WithDetail("value", r.PaymentMethod)
	}
	for i, it := range r.Items {
		productID, err := id.Parse(it.ProductID)
		if err != nil {
			return req, apperror.NewValidation("invalid product id").WithDetail("item", i)
		}
		req.Items = append(req.Items, orders.ItemRequest{ProductID: productID, Quantity: it.Quantity})
	}
	return req, nil
}

// PayRequest confirms a pending order's payment.
type PayRequest struct {
	ReferenceNumber string `json:"referenceNumber"`
}

// CancelRequest cancels an order.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// OrderListQuery filters GET /orders.
type OrderListQuery struct {
	PaginationRequest
	Status string `form:"status"`
	From   string `form:"from"`
	To     string `form:"to"`
}

// ToFilter converts to the domain filter.
func (q *OrderListQuery) ToFilter() (orders.ListFilter, error) {
	q.Defaults()
	f := orders.ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		st := orders.Status(strings.ToUpper(q.Status))
		f.Status = &st
	}
	var err error
	if f.From, err = ParseTime("from", q.From); err != nil {
		return f, err
	}
	if f.To, err = ParseTime("to", q.To); err != nil {
		return f, err
	}
	return f, nil
}
