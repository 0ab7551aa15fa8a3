package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
	"storefront-backend/internal/scope"
)

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if scope.From(c).User() == nil {
			respondFail(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		c.Next()
	}
}

// RequireRole admits signed-in users holding one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := scope.From(c).Session
		if sess.User() == nil {
			respondFail(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !sess.HasRole(roles...) {
			respondFail(c, http.StatusForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}
