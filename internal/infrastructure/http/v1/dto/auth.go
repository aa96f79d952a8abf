package dto

import (
	"strings"
	"time"

	"cafepos/internal/domain/auth"
)

// LoginRequest for staff login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ToCredentials converts to domain credentials.
func (r *LoginRequest) ToCredentials() auth.Credentials {
	return auth.Credentials{Username: r.Username, Password: r.Password}
}

// RefreshTokenRequest for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// LoginResponse carries the token pair and the account.
type LoginResponse struct {
	Tokens *auth.TokenPair `json:"tokens"`
	User   *UserResponse   `json:"user"`
}

// UserResponse is a staff account without secrets.
type UserResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	FullName    string     `json:"fullName,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Role        string     `json:"role"`
	IsArchived  bool       `json:"isArchived"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// FromUser maps a domain account.
func FromUser(u *auth.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		Phone:       u.Phone,
		Role:        u.Role,
		IsArchived:  u.IsArchived,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// FromUsers maps a page of accounts.
func FromUsers(users []*auth.User) []*UserResponse {
	out := make([]*UserResponse, len(users))
	for i, u := range users {
		out[i] = FromUser(u)
	}
	return out
}

// CreateStaffRequest is the body of POST /staff. Role defaults to cashier.
type CreateStaffRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=admin cashier"`
	Email    string `json:"email" binding:"omitempty,email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone" binding:"max=20"`
}

// ToDomain converts to the service input.
func (r *CreateStaffRequest) ToDomain() auth.NewStaff {
	role := strings.ToLower(r.Role)
	if role == "" {
		role = auth.RoleCashier
	}
	return auth.NewStaff{
		Username: r.Username,
		Password: r.Password,
		Role:     role,
		Email:    r.Email,
		FullName: r.FullName,
		Phone:    r.Phone,
	}
}

// UpdateStaffRequest is the body of PATCH /staff/:id. Absent fields stay.
type UpdateStaffRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin cashier"`
	Password *string `json:"password"`
}

// ToDomain converts to the service input.
func (r *UpdateStaffRequest) ToDomain() auth.StaffUpdate {
	return auth.StaffUpdate{
		Email:    r.Email,
		FullName: r.FullName,
		Phone:    r.Phone,
		Role:     r.Role,
		Password: r.Password,
	}
}

// StaffListQuery filters GET /staff.
type StaffListQuery struct {
	PaginationRequest
	Role     string `form:"role" binding:"omitempty,oneof=admin cashier"`
	Search   string `form:"search"`
	Archived bool   `form:"archived"`
}

// ToFilter converts to the domain filter.
func (q *StaffListQuery) ToFilter() auth.UserFilter {
	if q.Limit == 0 {
		q.Limit = 20
	}
	return auth.UserFilter{
		Role:            q.Role,
		Search:          q.Search,
		IncludeArchived: q.Archived,
		Limit:           q.Limit,
		Offset:          q.Offset,
	}
}
