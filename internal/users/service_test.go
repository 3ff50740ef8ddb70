package users

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/evidence"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, user *User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter ListFilter) ([]User, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]User), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*User, error) {
	args := m.Called(ctx, id, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockRepository) RecordLoginSuccess(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) RecordLoginFailure(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) PushProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	args := m.Called(ctx, userID, projectID)
	return args.Error(0)
}

func (m *MockRepository) PullProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	args := m.Called(ctx, userID, projectID)
	return args.Error(0)
}

func (m *MockRepository) SetTotals(ctx context.Context, userID primitive.ObjectID, credits int64, area float64) error {
	args := m.Called(ctx, userID, credits, area)
	return args.Error(0)
}

func (m *MockRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockProjectCounter is a mock implementation of ActiveProjectCounter
type MockProjectCounter struct {
	mock.Mock
}

func (m *MockProjectCounter) CountActiveByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProjectCounter) StatusCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockProjectCounter) MethodCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockProjectCounter) MonthlyCountsByUser(ctx context.Context, userID primitive.ObjectID, months int) (map[string]int64, error) {
	args := m.Called(ctx, userID, months)
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockStore is a mock implementation of the evidence.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, folder, contentType string, size int64, body io.Reader) (*evidence.Object, error) {
	args := m.Called(ctx, folder, contentType, size, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evidence.Object), args.Error(1)
}

func (m *MockStore) UploadBase64(ctx context.Context, folder, data string) (*evidence.Object, error) {
	args := m.Called(ctx, folder, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*evidence.Object), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestDeactivateBlockedByActiveProjects(t *testing.T) {
	repo := new(MockRepository)
	counter := new(MockProjectCounter)
	service := NewService(repo, counter, new(MockStore), zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	counter.On("CountActiveByUser", ctx, userID).Return(int64(2), nil)

	err := service.Deactivate(ctx, userID)

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid))
	repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeactivateSetsStatus(t *testing.T) {
	repo := new(MockRepository)
	counter := new(MockProjectCounter)
	service := NewService(repo, counter, new(MockStore), zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	counter.On("CountActiveByUser", ctx, userID).Return(int64(0), nil)
	repo.On("UpdateFields", ctx, userID, bson.M{"status": StatusDeactivated}).
		Return(&User{ID: userID, Status: StatusDeactivated}, nil)

	err := service.Deactivate(ctx, userID)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestUserStatsAggregatesPortfolio(t *testing.T) {
	repo := new(MockRepository)
	counter := new(MockProjectCounter)
	service := NewService(repo, counter, new(MockStore), zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	repo.On("GetByID", ctx, userID).Return(&User{
		ID:           userID,
		Projects:     []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()},
		TotalCredits: 900,
		TotalArea:    42.5,
	}, nil)
	counter.On("StatusCountsByUser", ctx, userID).
		Return(map[string]int64{"approved": 1, "pending": 1}, nil)
	counter.On("MethodCountsByUser", ctx, userID).
		Return(map[string]int64{"mangrove": 2}, nil)
	counter.On("MonthlyCountsByUser", ctx, userID, 12).
		Return(map[string]int64{"2026-08": 2}, nil)

	stats, err := service.Stats(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalProjects)
	assert.Equal(t, int64(900), stats.TotalCredits)
	assert.Equal(t, 42.5, stats.TotalAreaHa)
	assert.Equal(t, int64(1), stats.ByStatus["approved"])
	assert.Equal(t, int64(2), stats.ByMethod["mangrove"])
	assert.Equal(t, int64(2), stats.MonthlyTrend["2026-08"])
}

func TestUpdateRoleRequiresAdmin(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, new(MockProjectCounter), new(MockStore), zap.NewNop())
	role := RoleVerifier

	_, err := service.Update(context.Background(), primitive.NewObjectID(),
		UpdateUserRequest{Role: &role}, false)

	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	repo.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatusByAdminChecksActiveProjects(t *testing.T) {
	repo := new(MockRepository)
	counter := new(MockProjectCounter)
	service := NewService(repo, counter, new(MockStore), zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()
	status := StatusDeactivated

	counter.On("CountActiveByUser", ctx, userID).Return(int64(1), nil)

	_, err := service.Update(ctx, userID, UpdateUserRequest{Status: &status}, true)

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid))
}

func TestUpdateNoFields(t *testing.T) {
	service := NewService(new(MockRepository), new(MockProjectCounter), new(MockStore), zap.NewNop())

	_, err := service.Update(context.Background(), primitive.NewObjectID(), UpdateUserRequest{}, true)

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid))
}

func TestSetProfileImageReleasesPrevious(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	service := NewService(repo, new(MockProjectCounter), store, zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	existing := &User{ID: userID, Status: StatusActive, ProfileImageKey: "profiles/old"}
	repo.On("GetByID", ctx, userID).Return(existing, nil)
	store.On("Upload", ctx, "profiles", "image/png", int64(128), mock.Anything).
		Return(&evidence.Object{URL: "https://bucket/profiles/new", Key: "profiles/new"}, nil)
	store.On("Delete", ctx, "profiles/old").Return(nil)
	repo.On("UpdateFields", ctx, userID, bson.M{
		"profile_image":     "https://bucket/profiles/new",
		"profile_image_key": "profiles/new",
	}).Return(existing, nil)

	_, err := service.SetProfileImage(ctx, userID, "image/png", 128, nil)

	assert.NoError(t, err)
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
}
