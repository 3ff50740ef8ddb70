package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/config"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
)

// Claims carried in issued tokens.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Service resolves credentials to principals and issues tokens.
type Service struct {
	repo   users.Repository
	cfg    config.AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an auth service.
func NewService(repo users.Repository, cfg config.AuthConfig, logger *zap.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, logger: logger, now: time.Now}
}

// RegisterRequest is the typed input for user registration.
type RegisterRequest struct {
	FullName        string `json:"fullName" binding:"required,min=2,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Organization    string `json:"organization" binding:"omitempty,max=200"`
	Phone           string `json:"phone" binding:"omitempty,len=10,numeric"`
	Location        string `json:"location" binding:"omitempty,max=200"`
}

// Register creates a field user and returns it with a signed token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, string, error) {
	if req.Password != req.ConfirmPassword {
		return nil, "", apperrors.Invalid("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}

	user := &users.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         users.RoleField,
		Status:       users.StatusActive,
		Organization: req.Organization,
		Phone:        req.Phone,
		Location:     req.Location,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			return nil, "", apperrors.Invalid("user already exists with this email")
		}
		return nil, "", apperrors.Internal(err)
	}

	token, err := s.issueToken(user.ID.Hex(), user.Role, user.Email)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	return user, token, nil
}

// Login verifies the credential pair for the requested role. The reserved
// admin credential pair resolves to the fixed principal with no store
// lookup; field and verifier logins go through the users collection with
// the failed-attempt lockout.
func (s *Service) Login(ctx context.Context, email, password, role string) (*Principal, string, error) {
	if role == users.RoleAdmin {
		if email == s.cfg.AdminEmail && password == s.cfg.AdminPassword && s.cfg.AdminEmail != "" {
			token, err := s.issueToken(AdminID, users.RoleAdmin, email)
			if err != nil {
				return nil, "", apperrors.Internal(err)
			}
			return AdminPrincipal(), token, nil
		}
		return nil, "", apperrors.Unauthenticated("invalid admin credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, "", apperrors.Unauthenticated("invalid credentials")
		}
		return nil, "", apperrors.Internal(err)
	}

	if user.IsLocked(s.now()) {
		return nil, "", apperrors.Locked("account is temporarily locked, try again later")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if rerr := s.repo.RecordLoginFailure(ctx, user.ID); rerr != nil {
			s.logger.Warn("failed to record login failure", zap.Error(rerr))
		}
		return nil, "", apperrors.Unauthenticated("invalid credentials")
	}

	if err := s.repo.RecordLoginSuccess(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record login success", zap.Error(err))
	}

	token, err := s.issueToken(user.ID.Hex(), user.Role, user.Email)
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	return &Principal{ID: user.ID.Hex(), Role: user.Role, Email: user.Email, FullName: user.FullName}, token, nil
}

// Authenticate resolves a bearer token to a principal. The reserved admin
// subject is checked before any store lookup.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, apperrors.Unauthenticated("access denied, no token provided")
	}

	claims, err := s.verifyToken(token)
	if err != nil {
		return nil, err
	}

	if claims.Subject == AdminID {
		return AdminPrincipal(), nil
	}

	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperrors.Unauthenticated("token is invalid, user not found")
		}
		return nil, apperrors.Internal(err)
	}

	if !user.IsActive() {
		return nil, apperrors.Deactivated("account is deactivated, contact support")
	}
	if user.IsLocked(s.now()) {
		return nil, apperrors.Locked("account is temporarily locked, try again later")
	}

	return &Principal{ID: user.ID.Hex(), Role: user.Role, Email: user.Email, FullName: user.FullName}, nil
}

// AuthenticateOptional never fails: verification errors and account-state
// gates all collapse to an anonymous (nil) principal.
func (s *Service) AuthenticateOptional(ctx context.Context, token string) *Principal {
	if token == "" {
		return nil
	}

	claims, err := s.verifyToken(token)
	if err != nil {
		return nil
	}

	if claims.Subject == AdminID {
		return AdminPrincipal()
	}

	id, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil || !user.IsActive() || user.IsLocked(s.now()) {
		return nil
	}
	return &Principal{ID: user.ID.Hex(), Role: user.Role, Email: user.Email, FullName: user.FullName}
}

// ChangePassword verifies the current password and stores a new hash. The
// reserved admin has no stored credential to change.
func (s *Service) ChangePassword(ctx context.Context, p *Principal, current, next string) error {
	if p == nil {
		return apperrors.Unauthenticated("access denied, please login")
	}
	if p.ID == AdminID {
		return apperrors.Forbidden("admin password cannot be changed via this endpoint")
	}

	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return apperrors.NotFound("user not found")
		}
		return apperrors.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperrors.Unauthenticated("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := s.repo.SetPasswordHash(ctx, id, string(hash)); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// CurrentUser loads the stored record behind a principal, or a synthetic
// record for the reserved admin.
func (s *Service) CurrentUser(ctx context.Context, p *Principal) (*users.User, error) {
	if p == nil {
		return nil, apperrors.Unauthenticated("access denied, please login")
	}
	if p.ID == AdminID {
		return &users.User{FullName: p.FullName, Email: p.Email, Role: users.RoleAdmin, Status: users.StatusActive}, nil
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// UpdateProfileRequest is the typed input for self profile updates. Only
// the listed fields may change through this operation.
type UpdateProfileRequest struct {
	FullName     *string `json:"fullName" binding:"omitempty,min=2,max=100"`
	Organization *string `json:"organization" binding:"omitempty,max=200"`
	Phone        *string `json:"phone" binding:"omitempty,len=10,numeric"`
	Location     *string `json:"location" binding:"omitempty,max=200"`
}

// UpdateProfile applies the allow-listed profile fields for the caller.
func (s *Service) UpdateProfile(ctx context.Context, p *Principal, req UpdateProfileRequest) (*users.User, error) {
	if p == nil {
		return nil, apperrors.Unauthenticated("access denied, please login")
	}
	if p.ID == AdminID {
		return nil, apperrors.Forbidden("admin profile cannot be updated via this endpoint")
	}

	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

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
	if len(set) == 0 {
		return nil, apperrors.Invalid("no updatable fields provided")
	}

	user, err := s.repo.UpdateFields(ctx, id, set)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *Service) issueToken(subject, role, email string) (string, error) {
	now := s.now()
	claims := &Claims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Service) verifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, apperrors.InvalidToken(nil)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperrors.InvalidToken(nil)
	}
	return claims, nil
}
