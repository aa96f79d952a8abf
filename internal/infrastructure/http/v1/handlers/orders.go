package handlers

import (
	"github.com/gin-gonic/gin"

	"cafepos/internal/domain/orders"
	"cafepos/internal/infrastructure/http/v1/dto"
)

// OrderHandler serves orders, checkout and payment confirmation.
type OrderHandler struct {
	*BaseHandler
	service *orders.Service
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(base *BaseHandler, service *orders.Service) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// Checkout handles POST /orders/checkout: order, deduction and payment in one step.
func (h *OrderHandler) Checkout(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}

	receipt, err := h.service.Checkout(c.Request.Context(), req, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, receipt)
}

// Place handles POST /orders: a pending order awaiting payment.
func (h *OrderHandler) Place(c *gin.Context) {
	req, ok := h.bindOrder(c)
	if !ok {
		return
	}

	order, err := h.service.PlaceOrder(c.Request.Context(), req, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	var q dto.OrderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list, filter.Limit, filter.Offset))
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.Get(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Pay handles POST /orders/:id/pay
func (h *OrderHandler) Pay(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.PayRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	receipt, err := h.service.ConfirmPayment(c.Request.Context(), orderID, req.ReferenceNumber, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// Finish handles POST /orders/:id/finish
func (h *OrderHandler) Finish(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.Finish(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Cancel handles POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	order, err := h.service.Cancel(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

func (h *OrderHandler) bindOrder(c *gin.Context) (orders.Request, bool) {
	var body dto.OrderRequest
	if !h.BindJSON(c, &body) {
		return orders.Request{}, false
	}
	req, err := body.ToRequest()
	if err != nil {
		h.Error(c, err)
		return orders.Request{}, false
	}
	return req, true
}
