package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"cafepos/internal/core/apperror"
	"cafepos/internal/domain/availability"
	"cafepos/internal/domain/catalog"
	"cafepos/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves products, recipes and availability checks.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
	checker *availability.Checker
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(base *BaseHandler, service *catalog.Service, checker *availability.Checker) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, service: service, checker: checker}
}

// List handles GET /products
func (h *CatalogHandler) List(c *gin.Context) {
	var q dto.ProductListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()

	rows, err := h.service.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ProductResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.FromProduct(r))
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}

// Get handles GET /products/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	row, err := h.service.GetProductWithStock(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(row))
}

// Create handles POST /products
func (h *CatalogHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	product, recipe, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.CreateProduct(c.Request.Context(), product, recipe); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.NewIDResponse(product.ID))
}

// GetRecipe handles GET /products/:id/recipe
func (h *CatalogHandler) GetRecipe(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	recipe, err := h.service.GetRecipe(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, recipe)
}

// Availability handles GET /products/:id/availability?quantity=
func (h *CatalogHandler) Availability(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	quantity := 1
	if raw := c.Query("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("quantity must be an integer").WithDetail("value", raw))
			return
		}
		quantity = n
	}

	res, err := h.checker.CheckAvailability(c.Request.Context(), productID, quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// CheckBatch handles POST /availability/check
func (h *CatalogHandler) CheckBatch(c *gin.Context) {
	var req dto.CheckAvailabilityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.checker.CheckOrderAvailability(c.Request.Context(), items)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
