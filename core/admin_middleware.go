package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequirePrincipal rejects requests that reached the handler without an
// authenticated principal, e.g. because an operator listed the route's prefix as open.
func RequirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := principal(c); !ok {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}
