package users

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/evidence"
)

// ActiveProjectCounter reports per-user project aggregates. It is satisfied
// by the projects repository and breaks the package cycle between users and
// projects.
type ActiveProjectCounter interface {
	CountActiveByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	StatusCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error)
	MethodCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error)
	MonthlyCountsByUser(ctx context.Context, userID primitive.ObjectID, months int) (map[string]int64, error)
}

// UpdateUserRequest carries admin-editable user fields. Role and status
// changes are restricted to admins by the handler layer.
type UpdateUserRequest struct {
	FullName     *string `json:"fullName" binding:"omitempty,min=2,max=100"`
	Organization *string `json:"organization" binding:"omitempty,max=200"`
	Phone        *string `json:"phone" binding:"omitempty,len=10,numeric"`
	Location     *string `json:"location" binding:"omitempty,max=200"`
	Role         *string `json:"role" binding:"omitempty,oneof=field verifier admin"`
	Status       *string `json:"status" binding:"omitempty,oneof=active deactivated"`
}

// UserStats summarises one user's portfolio.
type UserStats struct {
	TotalProjects int64            `json:"totalProjects"`
	TotalCredits  int64            `json:"totalCredits"`
	TotalAreaHa   float64          `json:"totalAreaHa"`
	ByStatus      map[string]int64 `json:"byStatus"`
	ByMethod      map[string]int64 `json:"byMethod"`
	MonthlyTrend  map[string]int64 `json:"monthlyTrend"`
}

// Service owns user administration: listing, admin edits, deactivation and
// profile images.
type Service interface {
	List(ctx context.Context, filter ListFilter) ([]User, int64, error)
	Get(ctx context.Context, id primitive.ObjectID) (*User, error)
	Update(ctx context.Context, id primitive.ObjectID, req UpdateUserRequest, byAdmin bool) (*User, error)
	Deactivate(ctx context.Context, id primitive.ObjectID) error
	SetProfileImage(ctx context.Context, id primitive.ObjectID, contentType string, size int64, body io.Reader) (*User, error)
	Stats(ctx context.Context, id primitive.ObjectID) (*UserStats, error)
	RoleCounts(ctx context.Context) (map[string]int64, error)
}

type userService struct {
	repo     Repository
	projects ActiveProjectCounter
	storage  evidence.Store
	logger   *zap.Logger
}

func NewService(repo Repository, projects ActiveProjectCounter, storage evidence.Store, logger *zap.Logger) Service {
	return &userService{repo: repo, projects: projects, storage: storage, logger: logger}
}

func (s *userService) List(ctx context.Context, filter ListFilter) ([]User, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *userService) Get(ctx context.Context, id primitive.ObjectID) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id primitive.ObjectID, req UpdateUserRequest, byAdmin bool) (*User, error) {
	set := bson.M{}
	if req.FullName != nil {
		set["full_name"] = *req.FullName
	}
	if req.Organization != nil {
		set["organization"] = *req.Organization
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Location != nil {
		set["location"] = *req.Location
	}
	if req.Role != nil {
		if !byAdmin {
			return nil, apperrors.Forbidden("only admins can change roles")
		}
		if !ValidRole(*req.Role) {
			return nil, apperrors.Invalid("invalid role " + *req.Role)
		}
		set["role"] = *req.Role
	}
	if req.Status != nil {
		if !byAdmin {
			return nil, apperrors.Forbidden("only admins can change account status")
		}
		if *req.Status == StatusDeactivated {
			if err := s.checkDeactivatable(ctx, id); err != nil {
				return nil, err
			}
		}
		set["status"] = *req.Status
	}
	if len(set) == 0 {
		return nil, apperrors.Invalid("no fields to update")
	}

	user, err := s.repo.UpdateFields(ctx, id, set)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// Deactivate marks the account deactivated. Accounts with live projects
// (pending, under review or approved) cannot be deactivated.
func (s *userService) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	if err := s.checkDeactivatable(ctx, id); err != nil {
		return err
	}
	if _, err := s.repo.UpdateFields(ctx, id, bson.M{"status": StatusDeactivated}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.Internal(err)
	}
	s.logger.Info("user deactivated", zap.String("user_id", id.Hex()))
	return nil
}

func (s *userService) checkDeactivatable(ctx context.Context, id primitive.ObjectID) error {
	active, err := s.projects.CountActiveByUser(ctx, id)
	if err != nil {
		return apperrors.Internal(err)
	}
	if active > 0 {
		return apperrors.Invalid("cannot deactivate a user with active projects")
	}
	return nil
}

func (s *userService) SetProfileImage(ctx context.Context, id primitive.ObjectID, contentType string, size int64, body io.Reader) (*User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Upload(ctx, "profiles", contentType, size, body)
	if err != nil {
		return nil, err
	}

	// Release the previous image once the new one is stored.
	if user.ProfileImageKey != "" {
		if err := s.storage.Delete(ctx, user.ProfileImageKey); err != nil {
			s.logger.Warn("failed to release previous profile image",
				zap.String("key", user.ProfileImageKey), zap.Error(err))
		}
	}

	updated, err := s.repo.UpdateFields(ctx, id, bson.M{
		"profile_image":     obj.URL,
		"profile_image_key": obj.Key,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return updated, nil
}

func (s *userService) Stats(ctx context.Context, id primitive.ObjectID) (*UserStats, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.projects.StatusCountsByUser(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	byMethod, err := s.projects.MethodCountsByUser(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	trend, err := s.projects.MonthlyCountsByUser(ctx, id, 12)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &UserStats{
		TotalProjects: int64(len(user.Projects)),
		TotalCredits:  user.TotalCredits,
		TotalAreaHa:   user.TotalArea,
		ByStatus:      byStatus,
		ByMethod:      byMethod,
		MonthlyTrend:  trend,
	}, nil
}

func (s *userService) RoleCounts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return counts, nil
}
