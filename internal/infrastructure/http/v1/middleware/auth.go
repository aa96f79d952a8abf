package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"cafepos/internal/core/apperror"
	appctx "cafepos/internal/core/context"
)

// JWTValidator resolves a bearer token to a staff member.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Staff, error)
}

// Auth requires a valid bearer token and stores the staff member in the
// request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		staff, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil || staff == nil {
			if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeUnauthorized {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Request = c.Request.WithContext(appctx.WithStaff(c.Request.Context(), staff))
		c.Set("user_id", staff.ID.String())
		c.Set("role", staff.Role)

		c.Next()
	}
}

// RequireRole lets the request through when the staff member holds one of
// roles. Admins pass every check.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		staff, ok := appctx.StaffFrom(c.Request.Context())
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		if staff.Can(roles...) {
			c.Next()
			return
		}
		_ = c.Error(
			apperror.NewForbidden("role "+staff.Role+" may not perform this action").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
