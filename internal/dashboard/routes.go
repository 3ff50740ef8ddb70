package dashboard

import (
	"github.com/gin-gonic/gin"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
)

// RegisterRoutes wires the dashboard endpoints onto the router group.
func RegisterRoutes(rg *gin.RouterGroup, handler *Handler, authService *auth.Service) {
	dash := rg.Group("/dashboard")
	{
		dash.GET("/overview", handler.Overview)
		dash.GET("/carbon-stats", handler.CarbonStats)
		dash.GET("/regional-stats", handler.RegionalStats)
		dash.GET("/time-series", handler.TimeSeries)

		dash.GET("/me", authService.RequireAuth(), handler.UserDashboard)

		dash.GET("/admin",
			authService.RequireAuth(),
			auth.RequireRoles(users.RoleAdmin),
			handler.AdminDashboard)
		dash.GET("/regional-stats/export",
			authService.RequireAuth(),
			auth.RequireRoles(users.RoleAdmin),
			handler.ExportRegionalStats)
	}
}
