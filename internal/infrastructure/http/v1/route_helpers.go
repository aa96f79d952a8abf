package v1

import (
	"github.com/gin-gonic/gin"

	"cafepos/internal/domain/auth"
	"cafepos/internal/infrastructure/http/v1/middleware"
)

// staff admits cashiers and admins.
func staff() gin.HandlerFunc {
	return middleware.RequireRole(auth.RoleCashier, auth.RoleAdmin)
}

// adminOnly admits admins. RequireRole already lets admins through any
// role check, so this is the narrowest gate.
func adminOnly() gin.HandlerFunc {
	return middleware.RequireRole(auth.RoleAdmin)
}
