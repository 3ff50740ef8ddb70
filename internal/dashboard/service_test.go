package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/workflows"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) StatusBuckets(ctx context.Context) ([]StatusBucket, error) {
	args := m.Called(ctx)
	return args.Get(0).([]StatusBucket), args.Error(1)
}

func (m *MockRepository) Totals(ctx context.Context) (*Totals, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Totals), args.Error(1)
}

func (m *MockRepository) MonthlyTrend(ctx context.Context, months int) ([]TrendBucket, error) {
	args := m.Called(ctx, months)
	return args.Get(0).([]TrendBucket), args.Error(1)
}

func (m *MockRepository) TopRegions(ctx context.Context, limit int) ([]RegionBucket, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]RegionBucket), args.Error(1)
}

func (m *MockRepository) MethodDistribution(ctx context.Context) ([]MethodBucket, error) {
	args := m.Called(ctx)
	return args.Get(0).([]MethodBucket), args.Error(1)
}

func (m *MockRepository) CreditsByVintage(ctx context.Context) ([]VintageBucket, error) {
	args := m.Called(ctx)
	return args.Get(0).([]VintageBucket), args.Error(1)
}

func (m *MockRepository) CreditsByMethod(ctx context.Context) ([]MethodBucket, error) {
	args := m.Called(ctx)
	return args.Get(0).([]MethodBucket), args.Error(1)
}

func (m *MockRepository) TopOrganizations(ctx context.Context, limit int) ([]OrgBucket, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]OrgBucket), args.Error(1)
}

func (m *MockRepository) RegionalStats(ctx context.Context) ([]RegionBucket, error) {
	args := m.Called(ctx)
	return args.Get(0).([]RegionBucket), args.Error(1)
}

func (m *MockRepository) TimeSeries(ctx context.Context, period string) ([]TrendBucket, error) {
	args := m.Called(ctx, period)
	return args.Get(0).([]TrendBucket), args.Error(1)
}

func (m *MockRepository) UserStatusBuckets(ctx context.Context, userID primitive.ObjectID) ([]StatusBucket, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]StatusBucket), args.Error(1)
}

func (m *MockRepository) UserProjects(ctx context.Context, userID primitive.ObjectID, limit int) ([]bson.M, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]bson.M), args.Error(1)
}

func (m *MockRepository) PendingReviews(ctx context.Context, limit int) ([]PendingReview, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]PendingReview), args.Error(1)
}

func (m *MockRepository) RecentRegistrations(ctx context.Context, limit int) ([]RecentUser, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]RecentUser), args.Error(1)
}

func (m *MockRepository) DelayedMilestones(ctx context.Context, limit int) ([]MilestoneRef, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]MilestoneRef), args.Error(1)
}

func (m *MockRepository) CountProjects(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func TestCarbonStatsOnlyCountsApprovedAndVerified(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, nil, zap.NewNop())
	ctx := context.Background()

	repo.On("StatusBuckets", ctx).Return([]StatusBucket{
		{Status: workflows.StatusPending, Count: 4, Credits: 0},
		{Status: workflows.StatusApproved, Count: 2, Credits: 900},
		{Status: workflows.StatusVerified, Count: 1, Credits: 600},
		{Status: workflows.StatusRejected, Count: 1, Credits: 0},
	}, nil)
	repo.On("CreditsByVintage", ctx).Return([]VintageBucket{}, nil)
	repo.On("CreditsByMethod", ctx).Return([]MethodBucket{}, nil)
	repo.On("TopOrganizations", ctx, 5).Return([]OrgBucket{
		{Organization: "Coastal Trust", Count: 3, Credits: 1500},
	}, nil)

	stats, err := service.CarbonStats(ctx)

	assert.NoError(t, err)
	assert.Equal(t, int64(1500), stats.Total)
	assert.Len(t, stats.ByStatus, 2)
	assert.Len(t, stats.TopOrganizations, 1)
}

func TestTimeSeriesRejectsUnknownPeriod(t *testing.T) {
	service := NewService(new(MockRepository), nil, zap.NewNop())

	_, err := service.TimeSeries(context.Background(), "90days")

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid))
}

func TestUserDashboardSumsCreditedStatusesOnly(t *testing.T) {
	repo := new(MockRepository)
	service := NewService(repo, nil, zap.NewNop())
	ctx := context.Background()
	userID := primitive.NewObjectID()

	repo.On("UserStatusBuckets", ctx, userID).Return([]StatusBucket{
		{Status: workflows.StatusPending, Count: 1, Credits: 0, AreaHa: 20},
		{Status: workflows.StatusApproved, Count: 1, Credits: 450, AreaHa: 30},
	}, nil)
	repo.On("UserProjects", ctx, userID, 10).Return([]bson.M{}, nil)

	view, err := service.UserDashboard(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, int64(450), view.TotalCredits)
	assert.Equal(t, float64(50), view.TotalAreaHa)
}

func TestBuildActivity(t *testing.T) {
	projectID := primitive.NewObjectID()
	milestoneID := primitive.NewObjectID()
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reviewed := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	completed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := []bson.M{{
		"_id":        projectID,
		"name":       "Sundarbans Mangrove Restoration",
		"created_at": primitive.NewDateTimeFromTime(created),
		"review_comments": primitive.A{
			bson.M{"type": "approval", "reviewed_at": primitive.NewDateTimeFromTime(reviewed)},
		},
		"milestones": primitive.A{
			bson.M{
				"_id": milestoneID, "title": "Initial planting",
				"status": "completed", "completed_date": primitive.NewDateTimeFromTime(completed),
			},
			bson.M{
				"_id": primitive.NewObjectID(), "title": "Canopy survey",
				"status": "pending",
			},
		},
	}}

	activity, pending := buildActivity(rows)

	assert.Len(t, activity, 3)
	// Newest first.
	assert.Equal(t, "milestone_completed", activity[0].Kind)
	assert.Equal(t, "review", activity[1].Kind)
	assert.Equal(t, "project_created", activity[2].Kind)

	assert.Len(t, pending, 1)
	assert.Equal(t, "Canopy survey", pending[0].Title)
}
