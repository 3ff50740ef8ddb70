package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/httpx"
)

// Handler exposes the dashboard projections.
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Overview handles GET /dashboard/overview (public).
func (h *Handler) Overview(c *gin.Context) {
	view, err := h.service.Overview(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", view)
}

// CarbonStats handles GET /dashboard/carbon-stats (public).
func (h *Handler) CarbonStats(c *gin.Context) {
	stats, err := h.service.CarbonStats(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", stats)
}

// RegionalStats handles GET /dashboard/regional-stats (public).
func (h *Handler) RegionalStats(c *gin.Context) {
	regions, err := h.service.RegionalStats(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", gin.H{"regions": regions})
}

// TimeSeries handles GET /dashboard/time-series (public).
func (h *Handler) TimeSeries(c *gin.Context) {
	period := c.DefaultQuery("period", Period12Months)
	buckets, err := h.service.TimeSeries(c.Request.Context(), period)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", gin.H{"period": period, "series": buckets})
}

// UserDashboard handles GET /dashboard/me (authenticated).
func (h *Handler) UserDashboard(c *gin.Context) {
	principal := auth.FromContext(c)
	if principal == nil {
		httpx.Fail(c, http.StatusUnauthorized, "access denied, please login")
		return
	}
	userID, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "the reserved admin account has no user dashboard")
		return
	}

	view, err := h.service.UserDashboard(c.Request.Context(), userID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", view)
}

// AdminDashboard handles GET /dashboard/admin (admin only).
func (h *Handler) AdminDashboard(c *gin.Context) {
	view, err := h.service.AdminDashboard(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", view)
}

// ExportRegionalStats handles GET /dashboard/regional-stats/export (admin
// only). Responds with an xlsx attachment.
func (h *Handler) ExportRegionalStats(c *gin.Context) {
	data, err := h.service.ExportRegionalStats(c.Request.Context())
	if err != nil {
		httpx.Error(c, err)
		return
	}

	filename := "regional-stats-" + time.Now().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
