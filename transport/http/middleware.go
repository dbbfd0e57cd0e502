package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/rangda/service"
)

// Context keys populated by AuthMiddleware.
const (
	contextKeyCredential = "credential"
	contextKeySession    = "session"
)

// AuthMiddleware creates middleware that validates bearer credentials and
// binds the credential plus its live session into the request context.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		raw := auth[7:]

		cred, session, err := authService.ValidateCredential(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired credential"})
			return
		}

		c.Set(contextKeyCredential, cred)
		c.Set(contextKeySession, session)

		c.Next()
	}
}
