// Package handlers provides the gin handlers of the v1 API.
package handlers

import (
	"github.com/gin-gonic/gin"

	"cafepos/internal/core/apperror"
	"cafepos/internal/core/id"
	"cafepos/internal/domain/auth"
	"cafepos/internal/infrastructure/http/v1/dto"
)

// AuthHandler serves login, tokens and the admin's staff management.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates the handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, user, err := h.service.Login(c.Request.Context(), req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoginResponse{Tokens: tokens, User: dto.FromUser(user)})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, tokens)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	staffID, ok := h.requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Logout(c.Request.Context(), staffID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	staffID, ok := h.requireActor(c)
	if !ok {
		return
	}
	user, err := h.service.GetUserByID(c.Request.Context(), staffID)
	h.respondUser(c, user, err)
}

// ListStaff handles GET /staff
func (h *AuthHandler) ListStaff(c *gin.Context) {
	var q dto.StaffListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter := q.ToFilter()

	users, total, err := h.service.ListStaff(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(dto.FromUsers(users), filter.Limit, filter.Offset).WithTotal(total))
}

// CreateStaff handles POST /staff
func (h *AuthHandler) CreateStaff(c *gin.Context) {
	var req dto.CreateStaffRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.CreateStaff(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromUser(user))
}

// GetStaff handles GET /staff/:id
func (h *AuthHandler) GetStaff(c *gin.Context) {
	staffID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.GetUserByID(c.Request.Context(), staffID)
	h.respondUser(c, user, err)
}

// UpdateStaff handles PATCH /staff/:id
func (h *AuthHandler) UpdateStaff(c *gin.Context) {
	staffID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStaffRequest
	if !h.BindJSON(c, &req) {
		return
	}
	user, err := h.service.UpdateStaff(c.Request.Context(), staffID, req.ToDomain(), h.Actor(c))
	h.respondUser(c, user, err)
}

// ArchiveStaff handles POST /staff/:id/archive
func (h *AuthHandler) ArchiveStaff(c *gin.Context) {
	staffID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Archive(c.Request.Context(), staffID, h.Actor(c))
	h.respondUser(c, user, err)
}

// UnarchiveStaff handles POST /staff/:id/unarchive
func (h *AuthHandler) UnarchiveStaff(c *gin.Context) {
	staffID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Unarchive(c.Request.Context(), staffID)
	h.respondUser(c, user, err)
}

func (h *AuthHandler) respondUser(c *gin.Context, user *auth.User, err error) {
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(user))
}

func (h *AuthHandler) requireActor(c *gin.Context) (id.ID, bool) {
	staffID := h.Actor(c)
	if id.IsNil(staffID) {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return staffID, false
	}
	return staffID, true
}

// RegisterRoutes registers the login endpoints.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/login", h.Login)
	public.POST("/refresh", h.Refresh)

	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)
}

// RegisterStaffRoutes registers staff management on an admin-only group.
func (h *AuthHandler) RegisterStaffRoutes(admin *gin.RouterGroup) {
	admin.GET("", h.ListStaff)
	admin.POST("", h.CreateStaff)
	admin.GET("/:id", h.GetStaff)
	admin.PATCH("/:id", h.UpdateStaff)
	admin.POST("/:id/archive", h.ArchiveStaff)
	admin.POST("/:id/unarchive", h.UnarchiveStaff)
}
