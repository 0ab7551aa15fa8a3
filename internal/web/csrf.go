package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRF adapts gorilla/csrf to gin. Rejected requests are answered by csrf's
// failure handler and the chain stops there. When secure is false requests are
// treated as plain HTTP so local development works without TLS.
func CSRF(key []byte, secure bool, trustedOrigins []string) gin.HandlerFunc {
	protect := csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.TrustedOrigins(trustedOrigins),
	)
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})
		req := c.Request
		if !secure {
			req = csrf.PlaintextHTTPRequest(req)
		}
		protect(next).ServeHTTP(c.Writer, req)
		if !passed {
			c.Abort()
		}
	}
}
