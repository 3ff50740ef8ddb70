package users

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/httpx"
)

// PrincipalResolver is satisfied by the auth middleware helpers. The users
// package cannot import auth directly without a cycle, so the handler takes
// the lookup as a function.
type PrincipalResolver func(c *gin.Context) (id, role string)

// Handler exposes user administration endpoints.
type Handler struct {
	service   Service
	principal PrincipalResolver
	logger    *zap.Logger
}

func NewHandler(service Service, principal PrincipalResolver, logger *zap.Logger) *Handler {
	return &Handler{service: service, principal: principal, logger: logger}
}

// ListUsers handles GET /users (admin only).
func (h *Handler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	usersList, total, err := h.service.List(c.Request.Context(), ListFilter{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", gin.H{
		"users":      usersList,
		"pagination": httpx.NewPagination(page, limit, total),
	})
}

// GetUser handles GET /users/:id (admin or self).
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := h.authorizeSelfOrAdmin(c)
	if !ok {
		return
	}
	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", user)
}

// UpdateUser handles PUT /users/:id (admin or self; role/status admin only).
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := h.authorizeSelfOrAdmin(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	_, role := h.principal(c)
	user, err := h.service.Update(c.Request.Context(), id, req, role == RoleAdmin)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "User updated successfully", user)
}

// DeactivateUser handles DELETE /users/:id (admin only).
func (h *Handler) DeactivateUser(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "User deactivated successfully", nil)
}

// UploadProfileImage handles POST /users/:id/profile-image (admin or self).
func (h *Handler) UploadProfileImage(c *gin.Context) {
	id, ok := h.authorizeSelfOrAdmin(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "No image uploaded")
		return
	}
	f, err := fh.Open()
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer f.Close()

	user, err := h.service.SetProfileImage(c.Request.Context(), id, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Profile image updated", user)
}

// GetUserStats handles GET /users/:id/stats (admin or self).
func (h *Handler) GetUserStats(c *gin.Context) {
	id, ok := h.authorizeSelfOrAdmin(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", stats)
}

// authorizeSelfOrAdmin parses the path id and checks the caller is either
// that user or an admin.
func (h *Handler) authorizeSelfOrAdmin(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid user ID")
		return primitive.NilObjectID, false
	}
	callerID, role := h.principal(c)
	if role != RoleAdmin && callerID != id.Hex() {
		httpx.Error(c, apperrors.Forbidden("you can only access your own resources"))
		return primitive.NilObjectID, false
	}
	return id, true
}
