package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"cafepos/internal/domain/inventory"
	"cafepos/internal/domain/variance"
	"cafepos/internal/infrastructure/http/v1/dto"
)

// InventoryHandler serves ingredients, their ledger and stock alerts.
type InventoryHandler struct {
	*BaseHandler
	service         *inventory.Service
	tracker         *variance.Tracker
	criticalPercent decimal.Decimal
}

// NewInventoryHandler creates an inventory handler. criticalPercent is the
// default threshold of GET /ingredients/critical.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service, tracker *variance.Tracker, criticalPercent decimal.Decimal) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler:     base,
		service:         service,
		tracker:         tracker,
		criticalPercent: criticalPercent,
	}
}

// List handles GET /ingredients
func (h *InventoryHandler) List(c *gin.Context) {
	var q dto.IngredientListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(list, filter.Limit, filter.Offset))
}

// Get handles GET /ingredients/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ing, err := h.service.Get(c.Request.Context(), ingredientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ing)
}

// Create handles POST /ingredients
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateIngredientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ing := req.ToEntity()

	if err := h.service.Create(c.Request.Context(), ing); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ing)
}

// History handles GET /ingredients/:id/history
func (h *InventoryHandler) History(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.HistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.service.History(c.Request.Context(), ingredientID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries, filter.Limit, filter.Offset))
}

// SetAvailability handles POST /ingredients/:id/availability.
// {"available": bool} sets the override; an empty body toggles it.
func (h *InventoryHandler) SetAvailability(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.SetAvailabilityRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	var (
		ing *inventory.Ingredient
		err error
	)
	if req.Available != nil {
		ing, err = h.service.SetAvailability(c.Request.Context(), ingredientID, *req.Available)
	} else {
		ing, err = h.service.ToggleAvailability(c.Request.Context(), ingredientID)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ing)
}

// LowStock handles GET /ingredients/low-stock
func (h *InventoryHandler) LowStock(c *gin.Context) {
	list, err := h.tracker.LowStockIngredients(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromLowStock(list), 0, 0))
}

// Critical handles GET /ingredients/critical?threshold=
func (h *InventoryHandler) Critical(c *gin.Context) {
	var q dto.CriticalQuery
	if !h.BindQuery(c, &q) {
		return
	}
	threshold, err := q.Percent(h.criticalPercent)
	if err != nil {
		h.Error(c, err)
		return
	}

	list, err := h.tracker.CriticalLowStock(c.Request.Context(), threshold)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromLowStock(list), 0, 0))
}
