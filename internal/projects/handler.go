package projects

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/httpx"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
)

// maxImagesPerUpload caps one multipart upload call.
const maxImagesPerUpload = 5

// Handler exposes project lifecycle operations over HTTP.
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// CreateProject handles POST /projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := auth.FromContext(c)
	project, err := h.service.Create(c.Request.Context(), principal, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	h.logger.Info("project created",
		zap.String("project_id", project.ID.Hex()),
		zap.String("submitted_by", principal.ID))
	httpx.OK(c, http.StatusCreated, "Project submitted successfully", project)
}

// GetProject handles GET /projects/:id
func (h *Handler) GetProject(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}

	principal := auth.FromContext(c)
	project, err := h.service.Get(c.Request.Context(), principal, id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", project)
}

// ListProjects handles GET /projects
func (h *Handler) ListProjects(c *gin.Context) {
	page, limit := pageParams(c)
	filter := ListFilter{
		Status:       c.Query("status"),
		Region:       c.Query("region"),
		Organization: c.Query("organization"),
		Method:       c.Query("method"),
		Search:       c.Query("search"),
		Page:         page,
		Limit:        limit,
	}

	// Unauthenticated callers and field users only see public projects;
	// admins and verifiers see everything.
	principal := auth.FromContext(c)
	if principal == nil || (principal.Role != users.RoleAdmin && principal.Role != users.RoleVerifier) {
		filter.PublicOnly = true
	}

	projects, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", gin.H{
		"projects":   projects,
		"pagination": httpx.NewPagination(page, limit, total),
	})
}

// ListMyProjects handles GET /projects/my
func (h *Handler) ListMyProjects(c *gin.Context) {
	page, limit := pageParams(c)
	principal := auth.FromContext(c)

	projects, total, err := h.service.ListMine(c.Request.Context(), principal, page, limit)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "", gin.H{
		"projects":   projects,
		"pagination": httpx.NewPagination(page, limit, total),
	})
}

// UpdateProject handles PUT /projects/:id
func (h *Handler) UpdateProject(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := auth.FromContext(c)
	project, err := h.service.UpdateFields(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Project updated successfully", project)
}

// SetProjectStatus handles PATCH /projects/:id/status
func (h *Handler) SetProjectStatus(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := auth.FromContext(c)
	project, err := h.service.SetStatus(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	h.logger.Info("project status changed",
		zap.String("project_id", id.Hex()),
		zap.String("status", req.Status),
		zap.String("reviewed_by", principal.ID))
	httpx.OK(c, http.StatusOK, "Project status updated to "+req.Status, project)
}

// DeleteProject handles DELETE /projects/:id
func (h *Handler) DeleteProject(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}

	principal := auth.FromContext(c)
	if err := h.service.Delete(c.Request.Context(), principal, id); err != nil {
		httpx.Error(c, err)
		return
	}

	h.logger.Info("project deleted",
		zap.String("project_id", id.Hex()),
		zap.String("deleted_by", principal.ID))
	httpx.OK(c, http.StatusOK, "Project deleted successfully", nil)
}

// UploadProjectImages handles POST /projects/:id/images (multipart)
func (h *Handler) UploadProjectImages(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		httpx.Fail(c, http.StatusBadRequest, "No images uploaded")
		return
	}
	if len(files) > maxImagesPerUpload {
		httpx.Fail(c, http.StatusBadRequest, "Maximum 5 images per upload")
		return
	}

	uploads := make([]ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			httpx.Fail(c, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		defer f.Close()
		uploads = append(uploads, ImageUpload{
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
			FileName:    fh.Filename,
			Description: c.PostForm("description"),
		})
	}

	principal := auth.FromContext(c)
	_, added, err := h.service.AddImages(c.Request.Context(), principal, id, uploads)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Images uploaded successfully", gin.H{"images": added})
}

// AddMilestone handles POST /projects/:id/milestones
func (h *Handler) AddMilestone(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}

	var req AddMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := auth.FromContext(c)
	_, milestone, err := h.service.AddMilestone(c.Request.Context(), principal, id, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, "Milestone added successfully", milestone)
}

// UpdateMilestone handles PATCH /projects/:id/milestones/:milestoneId
func (h *Handler) UpdateMilestone(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid project ID")
		return
	}
	milestoneID, err := primitive.ObjectIDFromHex(c.Param("milestoneId"))
	if err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid milestone ID")
		return
	}

	var req UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, http.StatusBadRequest, "Invalid request format: "+err.Error())
		return
	}

	principal := auth.FromContext(c)
	milestone, err := h.service.UpdateMilestoneStatus(c.Request.Context(), principal, id, milestoneID, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Milestone updated successfully", milestone)
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}
