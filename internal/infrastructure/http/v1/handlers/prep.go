package handlers

import (
	"github.com/gin-gonic/gin"

	"cafepos/internal/core/apperror"
	"cafepos/internal/domain/prep"
	"cafepos/internal/infrastructure/http/v1/dto"
)

// PrepHandler serves prep batches.
type PrepHandler struct {
	*BaseHandler
	service *prep.Service
}

// NewPrepHandler creates a prep handler.
func NewPrepHandler(base *BaseHandler, service *prep.Service) *PrepHandler {
	return &PrepHandler{BaseHandler: base, service: service}
}

// Plan handles POST /prep-batches
func (h *PrepHandler) Plan(c *gin.Context) {
	var body dto.PlanBatchRequest
	if !h.BindJSON(c, &body) {
		return
	}
	req, err := body.ToRequest()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid product id"))
		return
	}

	batch, err := h.service.Plan(c.Request.Context(), req, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, batch)
}

// Get handles GET /prep-batches/:id and includes the expected ingredient usage.
func (h *PrepHandler) Get(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	batch, err := h.service.Get(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	usage, err := h.service.ExpectedUsage(ctx, batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.BatchResponse{Batch: batch, ExpectedUsage: usage})
}

// Start handles POST /prep-batches/:id/start
func (h *PrepHandler) Start(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.service.Start(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// Complete handles POST /prep-batches/:id/complete
func (h *PrepHandler) Complete(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	batch, res, err := h.service.Complete(c.Request.Context(), batchID, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CompleteBatchResponse{Batch: batch, Deduction: res})
}

// Cancel handles POST /prep-batches/:id/cancel
func (h *PrepHandler) Cancel(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.service.Cancel(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}
