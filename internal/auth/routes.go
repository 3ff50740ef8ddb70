package auth

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the auth endpoints onto the router group.
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler, service *Service) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", handler.Register)
		auth.POST("/login", handler.Login)
		auth.POST("/logout", handler.Logout)

		auth.GET("/me", service.RequireAuth(), handler.Me)
		auth.GET("/verify", service.RequireAuth(), handler.Verify)
		auth.PUT("/profile", service.RequireAuth(), handler.UpdateProfile)
		auth.PUT("/password", service.RequireAuth(), handler.ChangePassword)
	}
}
