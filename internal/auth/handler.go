package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/httpx"
)

// Handler exposes registration, login and session endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=field verifier admin"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,max=128"`
}

// Register handles POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	user, token, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	httpx.OK(c, http.StatusCreated, "Registration successful", gin.H{
		"user":  user,
		"token": token,
	})
}

// Login handles POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal, token, err := h.service.Login(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	h.logger.Info("user logged in", zap.String("user_id", principal.ID))
	httpx.OK(c, http.StatusOK, "Login successful", gin.H{
		"user":  principal,
		"token": token,
	})
}

// Logout handles POST /auth/logout. Sessions are stateless tokens, so
// logout only clears the cookie; the token stays valid until it expires.
func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", false, true)
	httpx.OK(c, http.StatusOK, "Logged out successfully", nil)
}

// Me handles GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	principal := FromContext(c)
	user, err := h.service.CurrentUser(c.Request.Context(), principal)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", user)
}

// Verify handles GET /auth/verify. Reaching it through the auth middleware
// means the token resolved to a live principal.
func (h *Handler) Verify(c *gin.Context) {
	principal := FromContext(c)
	httpx.OK(c, http.StatusOK, "Token is valid", principal)
}

// UpdateProfile handles PUT /auth/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := FromContext(c)
	user, err := h.service.UpdateProfile(c.Request.Context(), principal, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Profile updated successfully", user)
}

// ChangePassword handles PUT /auth/password
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := FromContext(c)
	if err := h.service.ChangePassword(c.Request.Context(), principal, req.CurrentPassword, req.NewPassword); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Password changed successfully", nil)
}
