package projects

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/credits"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/evidence"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/geospatial"
	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/workflows"
)

// Requests

type CreateProjectRequest struct {
	Name         string         `json:"name" binding:"required,min=3,max=200"`
	Description  string         `json:"description" binding:"required,min=10,max=2000"`
	Organization string         `json:"organization" binding:"required,min=2,max=200"`
	Region       string         `json:"region" binding:"required,min=2,max=100"`
	Area         float64        `json:"area" binding:"required"`
	Method       string         `json:"method" binding:"required,oneof=plantation natural_regeneration mixed"`
	Vintage      int            `json:"vintage" binding:"required"`
	Coordinates  []float64      `json:"coordinates" binding:"omitempty"`
	GeoData      map[string]any `json:"geoData" binding:"omitempty"`
	SpeciesMix   []SpeciesShare `json:"speciesMix" binding:"omitempty"`
	Tags         []string       `json:"tags" binding:"omitempty"`
	ImageBase64  string         `json:"imageBase64" binding:"omitempty"`
}

// UpdateProjectRequest carries the owner-editable fields. Anything else in
// the request body is ignored rather than rejected.
type UpdateProjectRequest struct {
	Name         *string         `json:"name" binding:"omitempty,min=3,max=200"`
	Description  *string         `json:"description" binding:"omitempty,min=10,max=2000"`
	Area         *float64        `json:"area" binding:"omitempty"`
	Region       *string         `json:"region" binding:"omitempty,min=2,max=100"`
	Organization *string         `json:"organization" binding:"omitempty,min=2,max=200"`
	SpeciesMix   *[]SpeciesShare `json:"speciesMix" binding:"omitempty"`
	Tags         *[]string       `json:"tags" binding:"omitempty"`
}

type SetStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment" binding:"omitempty,max=1000"`
	Credits *int64 `json:"credits" binding:"omitempty,min=0"`
}

type AddMilestoneRequest struct {
	Title       string     `json:"title" binding:"required,min=3,max=200"`
	Description string     `json:"description" binding:"omitempty,max=1000"`
	TargetDate  *time.Time `json:"targetDate" binding:"omitempty"`
}

type UpdateMilestoneRequest struct {
	Status   string    `json:"status" binding:"required,oneof=pending in_progress completed delayed"`
	Evidence *Evidence `json:"evidence" binding:"omitempty"`
}

// ImageUpload is one incoming evidence image.
type ImageUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
	FileName    string
	Description string
}

// Service owns the project lifecycle: creation, status transitions, field
// updates, deletion and milestone tracking.
type Service interface {
	Create(ctx context.Context, principal *auth.Principal, req CreateProjectRequest) (*Project, error)
	Get(ctx context.Context, principal *auth.Principal, id primitive.ObjectID) (*Project, error)
	List(ctx context.Context, filter ListFilter) ([]Project, int64, error)
	ListMine(ctx context.Context, principal *auth.Principal, page, limit int) ([]Project, int64, error)
	SetStatus(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, req SetStatusRequest) (*Project, error)
	UpdateFields(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, req UpdateProjectRequest) (*Project, error)
	Delete(ctx context.Context, principal *auth.Principal, id primitive.ObjectID) error
	AddImages(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, uploads []ImageUpload) (*Project, []Evidence, error)
	AddMilestone(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, req AddMilestoneRequest) (*Project, *Milestone, error)
	UpdateMilestoneStatus(ctx context.Context, principal *auth.Principal, id, milestoneID primitive.ObjectID, req UpdateMilestoneRequest) (*Milestone, error)
}

type projectService struct {
	repo         Repository
	userRepo     users.Repository
	ledger       credits.Ledger
	storage      evidence.Store
	stateMachine *workflows.StateMachine
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(
	repo Repository,
	userRepo users.Repository,
	ledger credits.Ledger,
	storage evidence.Store,
	logger *zap.Logger,
) Service {
	return &projectService{
		repo:         repo,
		userRepo:     userRepo,
		ledger:       ledger,
		storage:      storage,
		stateMachine: workflows.NewStateMachine(),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *projectService) Create(ctx context.Context, principal *auth.Principal, req CreateProjectRequest) (*Project, error) {
	if principal == nil {
		return nil, apperrors.Unauthenticated("access denied, please login")
	}
	ownerID, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		// The reserved admin has no stored record to own a project.
		return nil, apperrors.Invalid("the reserved admin account cannot submit projects")
	}

	now := s.now()
	if err := ValidateArea(req.Area); err != nil {
		return nil, apperrors.Invalid(err.Error())
	}
	if err := ValidateVintage(req.Vintage, now); err != nil {
		return nil, apperrors.Invalid(err.Error())
	}
	if err := ValidateSpeciesMix(req.SpeciesMix); err != nil {
		return nil, apperrors.Invalid(err.Error())
	}

	project := &Project{
		Name:             req.Name,
		Description:      req.Description,
		Organization:     req.Organization,
		SubmittedBy:      ownerID,
		Region:           req.Region,
		Area:             req.Area,
		Method:           req.Method,
		Vintage:          req.Vintage,
		Status:           workflows.StatusPending,
		EstimatedCredits: EstimateCredits(req.Area, req.Method, req.Vintage, now),
		Images:           []Evidence{},
		Documents:        []Evidence{},
		SpeciesMix:       req.SpeciesMix,
		Milestones:       []Milestone{},
		ReviewComments:   []ReviewComment{},
		IsPublic:         true,
		Priority:         "medium",
		Tags:             req.Tags,
	}

	if len(req.Coordinates) > 0 {
		point, err := geospatial.ValidatePoint(req.Coordinates)
		if err != nil {
			return nil, apperrors.Invalid(err.Error())
		}
		project.Location = &GeoPoint{Type: "Point", Coordinates: []float64{point[0], point[1]}}
	}

	if req.GeoData != nil {
		raw, merr := marshalGeoData(req.GeoData)
		if merr != nil {
			return nil, apperrors.Invalid("geoData must be valid GeoJSON")
		}
		geometry, err := geospatial.ValidateGeoJSON(raw)
		if err != nil {
			return nil, apperrors.Invalid(err.Error())
		}
		if mapped := geospatial.ConvertToHectares(geospatial.CalculateArea(geometry)); mapped > 0 {
			if mapped > req.Area*10 || mapped < req.Area/10 {
				s.logger.Warn("declared area diverges from mapped geometry",
					zap.Float64("declared_ha", req.Area),
					zap.Float64("mapped_ha", mapped))
			}
		}
		project.GeoData = req.GeoData
	}

	if req.ImageBase64 != "" {
		obj, err := s.storage.UploadBase64(ctx, "projects", req.ImageBase64)
		if err != nil {
			return nil, err
		}
		project.Images = append(project.Images, Evidence{
			URL:         obj.URL,
			Key:         obj.Key,
			Description: "Project baseline image",
			UploadedAt:  now,
		})
	}

	if err := s.repo.Create(ctx, project); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.userRepo.PushProject(ctx, ownerID, project.ID); err != nil {
		// Left for the reconciliation pass to repair.
		s.logger.Error("failed to link project to owner",
			zap.String("project_id", project.ID.Hex()), zap.Error(err))
	}

	return project, nil
}

func (s *projectService) Get(ctx context.Context, principal *auth.Principal, id primitive.ObjectID) (*Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewProject(principal, project.IsPublic, project.SubmittedBy.Hex()) {
		return nil, apperrors.Forbidden("access denied to private project")
	}
	return project, nil
}

func (s *projectService) List(ctx context.Context, filter ListFilter) ([]Project, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *projectService) ListMine(ctx context.Context, principal *auth.Principal, page, limit int) ([]Project, int64, error) {
	if principal == nil {
		return nil, 0, apperrors.Unauthenticated("access denied, please login")
	}
	ownerID, err := primitive.ObjectIDFromHex(principal.ID)
	if err != nil {
		return nil, 0, apperrors.Invalid("the reserved admin account owns no projects")
	}
	return s.repo.List(ctx, ListFilter{SubmittedBy: &ownerID, Page: page, Limit: limit})
}

// SetStatus applies a status transition. Only admins and verifiers may
// call it; verified is terminal. Credits supplied on a transition into
// approved or verified are written to the project and recorded as a ledger
// grant, from which the owner's totals are recomputed.
func (s *projectService) SetStatus(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, req SetStatusRequest) (*Project, error) {
	if err := auth.RequireRole(principal, users.RoleAdmin, users.RoleVerifier); err != nil {
		return nil, err
	}

	if !s.stateMachine.IsValidStatus(req.Status) {
		return nil, apperrors.Invalid("invalid status " + req.Status)
	}

	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.stateMachine.CanTransition(project.Status, req.Status) {
		return nil, apperrors.Forbidden("verified projects cannot change status")
	}

	project.Status = req.Status
	project.LastUpdatedBy = principal.ID

	creditsGranted := false
	if req.Credits != nil && (req.Status == workflows.StatusApproved || req.Status == workflows.StatusVerified) {
		project.Credits = *req.Credits
		creditsGranted = true
	}

	if req.Comment != "" {
		project.ReviewComments = append(project.ReviewComments, ReviewComment{
			Comment:    req.Comment,
			ReviewedBy: principal.ID,
			ReviewedAt: s.now(),
			Type:       commentTypeFor(req.Status),
		})
	}

	if err := s.repo.Replace(ctx, project); err != nil {
		return nil, apperrors.Internal(err)
	}

	if creditsGranted {
		if err := s.applyGrant(ctx, principal, project, *req.Credits); err != nil {
			return nil, err
		}
	}

	return project, nil
}

// applyGrant records the ledger entry and rewrites the owner's totals from
// the ledger sum, so repeated grants replace instead of accumulating.
func (s *projectService) applyGrant(ctx context.Context, principal *auth.Principal, project *Project, amount int64) error {
	grant := &credits.Grant{
		ProjectID: project.ID,
		UserID:    project.SubmittedBy,
		Status:    project.Status,
		Credits:   amount,
		AreaHa:    project.Area,
		GrantedBy: principal.ID,
	}
	if err := s.ledger.Record(ctx, grant); err != nil {
		return apperrors.Internal(err)
	}

	totals, err := s.ledger.TotalsForUser(ctx, project.SubmittedBy)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := s.userRepo.SetTotals(ctx, project.SubmittedBy, totals.Credits, totals.AreaHa); err != nil {
		// Totals drift is repaired by the reconciliation pass.
		s.logger.Error("failed to update owner totals",
			zap.String("user_id", project.SubmittedBy.Hex()), zap.Error(err))
	}
	return nil
}

func commentTypeFor(status string) string {
	switch status {
	case workflows.StatusApproved:
		return CommentApproval
	case workflows.StatusRejected:
		return CommentRejection
	default:
		return CommentRevisionRequest
	}
}

// UpdateFields applies the owner-editable allow-list. Verified projects
// are frozen for everyone but admins.
func (s *projectService) UpdateFields(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, req UpdateProjectRequest) (*Project, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(principal, project.SubmittedBy.Hex()); err != nil {
		return nil, err
	}
	if project.Status == workflows.StatusVerified && !principal.IsAdmin() {
		return nil, apperrors.Forbidden("cannot modify verified projects")
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Region != nil {
		project.Region = *req.Region
	}
	if req.Organization != nil {
		project.Organization = *req.Organization
	}
	if req.Tags != nil {
		project.Tags = *req.Tags
	}
	if req.SpeciesMix != nil {
		project.SpeciesMix = *req.SpeciesMix
	}
	if req.Area != nil {
		project.Area = *req.Area
		project.EstimatedCredits = EstimateCredits(project.Area, project.Method, project.Vintage, s.now())
	}

	if err := ValidateArea(project.Area); err != nil {
		return nil, apperrors.Invalid(err.Error())
	}
	if err := ValidateSpeciesMix(project.SpeciesMix); err != nil {
		return nil, apperrors.Invalid(err.Error())
	}

	project.LastUpdatedBy = principal.ID
	if err := s.repo.Replace(ctx, project); err != nil {
		return nil, apperrors.Internal(err)
	}
	return project, nil
}

// Delete removes a project. Verified projects cannot be deleted by any
// role. Evidence release is best-effort: a failed object delete is logged
// and the deletion continues.
func (s *projectService) Delete(ctx context.Context, principal *auth.Principal, id primitive.ObjectID) error {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.RequireOwnerOrAdmin(principal, project.SubmittedBy.Hex()); err != nil {
		return err
	}
	if project.Status == workflows.StatusVerified {
		return apperrors.Forbidden("cannot delete verified projects")
	}

	for _, obj := range append(append([]Evidence{}, project.Images...), project.Documents...) {
		if obj.Key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, obj.Key); err != nil {
			s.logger.Warn("failed to release evidence object",
				zap.String("key", obj.Key), zap.String("project_id", id.Hex()), zap.Error(err))
		}
	}

	if err := s.userRepo.PullProject(ctx, project.SubmittedBy, project.ID); err != nil {
		// The dangling reference is repaired by the reconciliation pass.
		s.logger.Error("failed to unlink project from owner",
			zap.String("project_id", id.Hex()), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.NotFound("project not found")
		}
		return apperrors.Internal(err)
	}
	return nil
}

func (s *projectService) AddImages(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, uploads []ImageUpload) (*Project, []Evidence, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := auth.RequireOwnerOrAdmin(principal, project.SubmittedBy.Hex()); err != nil {
		return nil, nil, err
	}
	if len(uploads) == 0 {
		return nil, nil, apperrors.Invalid("no images uploaded")
	}

	added := make([]Evidence, 0, len(uploads))
	for _, up := range uploads {
		obj, err := s.storage.Upload(ctx, "projects", up.ContentType, up.Size, up.Body)
		if err != nil {
			return nil, nil, err
		}
		ev := Evidence{
			URL:         obj.URL,
			Key:         obj.Key,
			Description: up.Description,
			FileName:    up.FileName,
			FileType:    up.ContentType,
			UploadedAt:  s.now(),
		}
		added = append(added, ev)
	}

	project.Images = append(project.Images, added...)
	project.LastUpdatedBy = principal.ID
	if err := s.repo.Replace(ctx, project); err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	return project, added, nil
}

func (s *projectService) AddMilestone(ctx context.Context, principal *auth.Principal, id primitive.ObjectID, req AddMilestoneRequest) (*Project, *Milestone, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := auth.RequireOwnerOrAdmin(principal, project.SubmittedBy.Hex()); err != nil {
		return nil, nil, err
	}

	milestone := Milestone{
		ID:          primitive.NewObjectID(),
		Title:       req.Title,
		Description: req.Description,
		TargetDate:  req.TargetDate,
		Status:      MilestonePending,
		Evidence:    []Evidence{},
	}
	project.Milestones = append(project.Milestones, milestone)
	project.LastUpdatedBy = principal.ID

	if err := s.repo.Replace(ctx, project); err != nil {
		return nil, nil, apperrors.Internal(err)
	}
	return project, &milestone, nil
}

// UpdateMilestoneStatus moves a milestone between statuses. CompletedDate
// is stamped exactly when entering completed and is intentionally never
// cleared by a later transition.
func (s *projectService) UpdateMilestoneStatus(ctx context.Context, principal *auth.Principal, id, milestoneID primitive.ObjectID, req UpdateMilestoneRequest) (*Milestone, error) {
	project, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(principal, project.SubmittedBy.Hex()); err != nil {
		return nil, err
	}

	var milestone *Milestone
	for i := range project.Milestones {
		if project.Milestones[i].ID == milestoneID {
			milestone = &project.Milestones[i]
			break
		}
	}
	if milestone == nil {
		return nil, apperrors.NotFound("milestone not found")
	}

	milestone.Status = req.Status
	if req.Status == MilestoneCompleted {
		now := s.now()
		milestone.CompletedDate = &now
	}
	if req.Evidence != nil {
		req.Evidence.UploadedAt = s.now()
		milestone.Evidence = append(milestone.Evidence, *req.Evidence)
	}
	project.LastUpdatedBy = principal.ID

	if err := s.repo.Replace(ctx, project); err != nil {
		return nil, apperrors.Internal(err)
	}
	return milestone, nil
}

func marshalGeoData(v map[string]any) ([]byte, error) {
	return json.Marshal(v)
}

func (s *projectService) getProject(ctx context.Context, id primitive.ObjectID) (*Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFound("project not found")
		}
		return nil, apperrors.Internal(err)
	}
	return project, nil
}
