package projects

import (
	"github.com/gin-gonic/gin"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
)

// RegisterRoutes wires the project endpoints onto the router group.
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler, authService *auth.Service) {
	projects := rg.Group("/projects")
	{
		projects.GET("", authService.OptionalAuth(), handler.ListProjects)
		projects.GET("/my", authService.RequireAuth(), handler.ListMyProjects)
		projects.GET("/:id", authService.OptionalAuth(), handler.GetProject)

		projects.POST("", authService.RequireAuth(), handler.CreateProject)
		projects.PUT("/:id", authService.RequireAuth(), handler.UpdateProject)
		projects.DELETE("/:id", authService.RequireAuth(), handler.DeleteProject)

		projects.PATCH("/:id/status",
			authService.RequireAuth(),
			auth.RequireRoles(users.RoleAdmin, users.RoleVerifier),
			handler.SetProjectStatus)

		projects.POST("/:id/images", authService.RequireAuth(), handler.UploadProjectImages)
		projects.POST("/:id/milestones", authService.RequireAuth(), handler.AddMilestone)
		projects.PATCH("/:id/milestones/:milestoneId", authService.RequireAuth(), handler.UpdateMilestone)
	}
}
