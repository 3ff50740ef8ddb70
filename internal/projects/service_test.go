package projects

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/auth"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/credits"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/evidence"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/workflows"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, project *Project) error {
	args := m.Called(ctx, project)
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockRepository) Replace(ctx context.Context, project *Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) List(ctx context.Context, filter ListFilter) ([]Project, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Project), args.Get(1).(int64), args.Error(2)
}

func (m *MockRepository) CountActiveByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) StatusCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockRepository) MethodCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockRepository) MonthlyCountsByUser(ctx context.Context, userID primitive.ObjectID, months int) (map[string]int64, error) {
	args := m.Called(ctx, userID, months)
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockUserRepository is a mock implementation of the users.Repository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *users.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter users.ListFilter) ([]users.User, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]users.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*users.User, error) {
	args := m.Called(ctx, id, set)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *MockUserRepository) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockUserRepository) RecordLoginSuccess(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) RecordLoginFailure(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) PushProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	args := m.Called(ctx, userID, projectID)
	return args.Error(0)
}

func (m *MockUserRepository) PullProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	args := m.Called(ctx, userID, projectID)
	return args.Error(0)
}

func (m *MockUserRepository) SetTotals(ctx context.Context, userID primitive.ObjectID, credits int64, area float64) error {
	args := m.Called(ctx, userID, credits, area)
	return args.Error(0)
}

func (m *MockUserRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockLedger is a mock implementation of the credits.Ledger interface
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Record(ctx context.Context, grant *credits.Grant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockLedger) TotalsForUser(ctx context.Context, userID primitive.ObjectID) (credits.Totals, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(credits.Totals), args.Error(1)
}

func (m *MockLedger) UserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	args := m.Called(ctx)
	return args.Get(0).([]primitive.ObjectID), args.Error(1)
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

type serviceFixture struct {
	repo     *MockRepository
	userRepo *MockUserRepository
	ledger   *MockLedger
	store    *MockStore
	service  Service
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		repo:     new(MockRepository),
		userRepo: new(MockUserRepository),
		ledger:   new(MockLedger),
		store:    new(MockStore),
	}
	f.service = NewService(f.repo, f.userRepo, f.ledger, f.store, zap.NewNop())
	return f
}

func fieldPrincipal(id primitive.ObjectID) *auth.Principal {
	return &auth.Principal{ID: id.Hex(), Role: users.RoleField}
}

func verifierPrincipal() *auth.Principal {
	return &auth.Principal{ID: primitive.NewObjectID().Hex(), Role: users.RoleVerifier}
}

func sampleProject(owner primitive.ObjectID, status string) *Project {
	return &Project{
		ID:          primitive.NewObjectID(),
		Name:        "Sundarbans Mangrove Restoration",
		Description: "Replanting mangroves across degraded tidal flats",
		SubmittedBy: owner,
		Region:      "Sundarbans",
		Area:        50,
		Method:      MethodPlantation,
		Vintage:     time.Now().Year(),
		Status:      status,
		IsPublic:    true,
	}
}

func TestCreateProject(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	ctx := context.Background()

	f.repo.On("Create", ctx, mock.AnythingOfType("*projects.Project")).Return(nil)
	f.userRepo.On("PushProject", ctx, owner, mock.AnythingOfType("primitive.ObjectID")).Return(nil)

	project, err := f.service.Create(ctx, fieldPrincipal(owner), CreateProjectRequest{
		Name:         "Sundarbans Mangrove Restoration",
		Description:  "Replanting mangroves across degraded tidal flats",
		Organization: "Coastal Trust",
		Region:       "Sundarbans",
		Area:         50,
		Method:       MethodPlantation,
		Vintage:      time.Now().Year(),
	})

	assert.NoError(t, err)
	assert.Equal(t, workflows.StatusPending, project.Status)
	assert.Equal(t, owner, project.SubmittedBy)
	assert.Equal(t, int64(525), project.EstimatedCredits)
	f.repo.AssertExpectations(t)
	f.userRepo.AssertExpectations(t)
}

func TestCreateProjectRejectsReservedAdmin(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), auth.AdminPrincipal(), CreateProjectRequest{
		Name:         "Sundarbans Mangrove Restoration",
		Description:  "Replanting mangroves across degraded tidal flats",
		Organization: "Coastal Trust",
		Region:       "Sundarbans",
		Area:         50,
		Method:       MethodPlantation,
		Vintage:      time.Now().Year(),
	})

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProjectRejectsBadArea(t *testing.T) {
	f := newFixture()

	_, err := f.service.Create(context.Background(), fieldPrincipal(primitive.NewObjectID()), CreateProjectRequest{
		Name:         "Sundarbans Mangrove Restoration",
		Description:  "Replanting mangroves across degraded tidal flats",
		Organization: "Coastal Trust",
		Region:       "Sundarbans",
		Area:         20000,
		Method:       MethodPlantation,
		Vintage:      time.Now().Year(),
	})

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalid))
}

func TestSetStatusRequiresReviewerRole(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()

	_, err := f.service.SetStatus(context.Background(), fieldPrincipal(owner),
		primitive.NewObjectID(), SetStatusRequest{Status: workflows.StatusApproved})

	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	f.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestSetStatusVerifiedIsTerminal(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusVerified)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := f.service.SetStatus(ctx, verifierPrincipal(), project.ID,
		SetStatusRequest{Status: workflows.StatusUnderReview})

	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	f.repo.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
}

func TestSetStatusGrantsCreditsOnApproval(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusUnderReview)
	ctx := context.Background()
	amount := int64(480)

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)
	f.ledger.On("Record", ctx, mock.MatchedBy(func(g *credits.Grant) bool {
		return g.ProjectID == project.ID && g.UserID == owner && g.Credits == amount
	})).Return(nil)
	f.ledger.On("TotalsForUser", ctx, owner).Return(credits.Totals{Credits: amount, AreaHa: 50}, nil)
	f.userRepo.On("SetTotals", ctx, owner, amount, float64(50)).Return(nil)

	updated, err := f.service.SetStatus(ctx, verifierPrincipal(), project.ID,
		SetStatusRequest{Status: workflows.StatusApproved, Credits: &amount})

	assert.NoError(t, err)
	assert.Equal(t, workflows.StatusApproved, updated.Status)
	assert.Equal(t, amount, updated.Credits)
	f.ledger.AssertExpectations(t)
	f.userRepo.AssertExpectations(t)
}

func TestSetStatusIgnoresCreditsOnRejection(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusUnderReview)
	ctx := context.Background()
	amount := int64(480)

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)

	updated, err := f.service.SetStatus(ctx, verifierPrincipal(), project.ID,
		SetStatusRequest{Status: workflows.StatusRejected, Credits: &amount})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), updated.Credits)
	f.ledger.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestSetStatusDerivesCommentType(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusUnderReview)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)

	updated, err := f.service.SetStatus(ctx, verifierPrincipal(), project.ID,
		SetStatusRequest{Status: workflows.StatusRejected, Comment: "species mix is implausible"})

	assert.NoError(t, err)
	assert.Len(t, updated.ReviewComments, 1)
	assert.Equal(t, CommentRejection, updated.ReviewComments[0].Type)
}

func TestUpdateFieldsVerifiedFrozenForOwner(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusVerified)
	ctx := context.Background()
	name := "Renamed Project"

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := f.service.UpdateFields(ctx, fieldPrincipal(owner), project.ID,
		UpdateProjectRequest{Name: &name})

	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	f.repo.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
}

func TestUpdateFieldsAdminCanEditVerified(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusVerified)
	ctx := context.Background()
	name := "Renamed Project"

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)

	updated, err := f.service.UpdateFields(ctx, auth.AdminPrincipal(), project.ID,
		UpdateProjectRequest{Name: &name})

	assert.NoError(t, err)
	assert.Equal(t, name, updated.Name)
}

func TestUpdateFieldsAreaReestimatesCredits(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusPending)
	ctx := context.Background()
	area := 100.0

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)

	updated, err := f.service.UpdateFields(ctx, fieldPrincipal(owner), project.ID,
		UpdateProjectRequest{Area: &area})

	assert.NoError(t, err)
	assert.Equal(t, int64(1050), updated.EstimatedCredits)
}

func TestDeleteVerifiedForbiddenForAll(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusVerified)
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)

	err := f.service.Delete(ctx, auth.AdminPrincipal(), project.ID)

	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
	f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteReleasesEvidenceBestEffort(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusPending)
	project.Images = []Evidence{{URL: "https://bucket/img", Key: "projects/img"}}
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.store.On("Delete", ctx, "projects/img").Return(assert.AnError)
	f.userRepo.On("PullProject", ctx, owner, project.ID).Return(nil)
	f.repo.On("Delete", ctx, project.ID).Return(nil)

	err := f.service.Delete(ctx, fieldPrincipal(owner), project.ID)

	assert.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestUpdateMilestoneStampsCompletedDate(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusApproved)
	milestoneID := primitive.NewObjectID()
	project.Milestones = []Milestone{{ID: milestoneID, Title: "Initial planting", Status: MilestonePending}}
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)

	milestone, err := f.service.UpdateMilestoneStatus(ctx, fieldPrincipal(owner), project.ID, milestoneID,
		UpdateMilestoneRequest{Status: MilestoneCompleted})

	assert.NoError(t, err)
	assert.NotNil(t, milestone.CompletedDate)
}

func TestUpdateMilestoneKeepsCompletedDateOnReopen(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusApproved)
	milestoneID := primitive.NewObjectID()
	completed := time.Now().Add(-24 * time.Hour)
	project.Milestones = []Milestone{{
		ID: milestoneID, Title: "Initial planting",
		Status: MilestoneCompleted, CompletedDate: &completed,
	}}
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)
	f.repo.On("Replace", ctx, project).Return(nil)

	milestone, err := f.service.UpdateMilestoneStatus(ctx, fieldPrincipal(owner), project.ID, milestoneID,
		UpdateMilestoneRequest{Status: MilestoneDelayed})

	assert.NoError(t, err)
	assert.Equal(t, MilestoneDelayed, milestone.Status)
	assert.Equal(t, &completed, milestone.CompletedDate)
}

func TestGetPrivateProjectHiddenFromStrangers(t *testing.T) {
	f := newFixture()
	owner := primitive.NewObjectID()
	project := sampleProject(owner, workflows.StatusPending)
	project.IsPublic = false
	ctx := context.Background()

	f.repo.On("GetByID", ctx, project.ID).Return(project, nil)

	_, err := f.service.Get(ctx, fieldPrincipal(primitive.NewObjectID()), project.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	got, err := f.service.Get(ctx, fieldPrincipal(owner), project.ID)
	assert.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)
}
