package users

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the user administration endpoints. requireAuth must
// resolve a principal; requireAdmin must additionally gate to the admin
// role.
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler, requireAuth, requireAdmin gin.HandlerFunc) {
	users := rg.Group("/users", requireAuth)
	{
		users.GET("", requireAdmin, handler.ListUsers)
		users.GET("/:id", handler.GetUser)
		users.PUT("/:id", handler.UpdateUser)
		users.DELETE("/:id", requireAdmin, handler.DeactivateUser)
		users.POST("/:id/profile-image", handler.UploadProfileImage)
		users.GET("/:id/stats", handler.GetUserStats)
	}
}
