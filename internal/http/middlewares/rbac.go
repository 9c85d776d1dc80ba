package middlewares

import (
	"github.com/geocoder89/stockroom/internal/authz"
	"github.com/geocoder89/stockroom/internal/domain/user"
	"github.com/geocoder89/stockroom/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth. Without a principal it answers 401,
// so an anonymous caller never learns whether its role would have sufficed.
func (m *AuthMiddleware) RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			p = &authz.Principal{}
		}

		if err := authz.Run(c.Request.Context(), p, authz.RequireRole(required)); err != nil {
			m.record("authorize", "denied")
			handlers.AbortWithErr(c, err)
			return
		}
		m.record("authorize", "ok")

		c.Next()
	}
}
