package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/rangda/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, chatService *service.ChatService) *gin.Engine {
	router := gin.Default()

	authHandlers := NewAuthHandlers(authService)
	chatHandlers := NewChatHandlers(authService, chatService)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", authHandlers.Challenge)
		auth.POST("/login", authHandlers.Login)
		auth.POST("/refresh", authHandlers.Refresh)
		auth.POST("/logout", authHandlers.Logout)
	}

	// Protected persona routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.POST("/chat", chatHandlers.Chat)
		api.POST("/switch", chatHandlers.Switch)
		api.GET("/me", chatHandlers.Me)
		api.GET("/traits", chatHandlers.Traits)
		api.GET("/history", chatHandlers.History)
	}

	return router
}
