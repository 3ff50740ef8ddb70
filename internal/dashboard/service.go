package dashboard

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
	"blue-carbon/mrv-portal/mrv-portal-backend/internal/users"
	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/workflows"
)

// Service assembles the dashboard views from aggregation queries.
type Service interface {
	Overview(ctx context.Context) (*Overview, error)
	CarbonStats(ctx context.Context) (*CarbonStats, error)
	RegionalStats(ctx context.Context) ([]RegionBucket, error)
	TimeSeries(ctx context.Context, period string) ([]TrendBucket, error)
	UserDashboard(ctx context.Context, userID primitive.ObjectID) (*UserDashboard, error)
	AdminDashboard(ctx context.Context) (*AdminDashboard, error)
	ExportRegionalStats(ctx context.Context) ([]byte, error)
}

type dashboardService struct {
	repo     Repository
	userRepo users.Repository
	logger   *zap.Logger
}

func NewService(repo Repository, userRepo users.Repository, logger *zap.Logger) Service {
	return &dashboardService{repo: repo, userRepo: userRepo, logger: logger}
}

func (s *dashboardService) Overview(ctx context.Context) (*Overview, error) {
	byStatus, err := s.repo.StatusBuckets(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	trend, err := s.repo.MonthlyTrend(ctx, 12)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	regions, err := s.repo.TopRegions(ctx, 5)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	methods, err := s.repo.MethodDistribution(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &Overview{
		Totals:       *totals,
		ByStatus:     byStatus,
		MonthlyTrend: trend,
		TopRegions:   regions,
		ByMethod:     methods,
	}, nil
}

func (s *dashboardService) CarbonStats(ctx context.Context) (*CarbonStats, error) {
	byStatus, err := s.repo.StatusBuckets(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	byVintage, err := s.repo.CreditsByVintage(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	byMethod, err := s.repo.CreditsByMethod(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	topOrgs, err := s.repo.TopOrganizations(ctx, 5)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	stats := &CarbonStats{ByVintage: byVintage, ByMethod: byMethod, TopOrganizations: topOrgs}
	for _, b := range byStatus {
		if b.Status == workflows.StatusApproved || b.Status == workflows.StatusVerified {
			stats.ByStatus = append(stats.ByStatus, b)
			stats.Total += b.Credits
		}
	}
	return stats, nil
}

func (s *dashboardService) RegionalStats(ctx context.Context) ([]RegionBucket, error) {
	regions, err := s.repo.RegionalStats(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return regions, nil
}

func (s *dashboardService) TimeSeries(ctx context.Context, period string) ([]TrendBucket, error) {
	switch period {
	case Period30Days, Period6Months, Period12Months:
	default:
		return nil, apperrors.Invalid("period must be one of 30days, 6months, 12months")
	}
	buckets, err := s.repo.TimeSeries(ctx, period)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return buckets, nil
}

func (s *dashboardService) UserDashboard(ctx context.Context, userID primitive.ObjectID) (*UserDashboard, error) {
	byStatus, err := s.repo.UserStatusBuckets(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	view := &UserDashboard{ByStatus: byStatus}
	for _, b := range byStatus {
		if b.Status == workflows.StatusApproved || b.Status == workflows.StatusVerified {
			view.TotalCredits += b.Credits
		}
		view.TotalAreaHa += b.AreaHa
	}

	rows, err := s.repo.UserProjects(ctx, userID, 10)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	view.RecentActivity, view.PendingMilestones = buildActivity(rows)
	return view, nil
}

// buildActivity derives the recent-activity feed and pending milestone list
// from the projection rows: project creation, the latest review comment and
// completed milestones each become feed items.
func buildActivity(rows []bson.M) ([]ActivityItem, []MilestoneRef) {
	var activity []ActivityItem
	var pending []MilestoneRef

	for _, row := range rows {
		projectID, _ := row["_id"].(primitive.ObjectID)
		name, _ := row["name"].(string)

		if createdAt, ok := asTime(row["created_at"]); ok {
			activity = append(activity, ActivityItem{
				ProjectID:   projectID,
				ProjectName: name,
				Kind:        "project_created",
				OccurredAt:  createdAt,
			})
		}

		if comments, ok := row["review_comments"].(primitive.A); ok && len(comments) > 0 {
			if last, ok := comments[len(comments)-1].(bson.M); ok {
				if reviewedAt, ok := asTime(last["reviewed_at"]); ok {
					detail, _ := last["type"].(string)
					activity = append(activity, ActivityItem{
						ProjectID:   projectID,
						ProjectName: name,
						Kind:        "review",
						Detail:      detail,
						OccurredAt:  reviewedAt,
					})
				}
			}
		}

		if milestones, ok := row["milestones"].(primitive.A); ok {
			for _, raw := range milestones {
				m, ok := raw.(bson.M)
				if !ok {
					continue
				}
				status, _ := m["status"].(string)
				title, _ := m["title"].(string)
				milestoneID, _ := m["_id"].(primitive.ObjectID)

				switch status {
				case "completed":
					if completedAt, ok := asTime(m["completed_date"]); ok {
						activity = append(activity, ActivityItem{
							ProjectID:   projectID,
							ProjectName: name,
							Kind:        "milestone_completed",
							Detail:      title,
							OccurredAt:  completedAt,
						})
					}
				case "pending", "in_progress":
					ref := MilestoneRef{
						ProjectID:   projectID,
						ProjectName: name,
						MilestoneID: milestoneID,
						Title:       title,
						Status:      status,
					}
					if target, ok := asTime(m["target_date"]); ok {
						ref.TargetDate = &target
					}
					pending = append(pending, ref)
				}
			}
		}
	}

	// Newest first, capped at ten entries.
	for i := 0; i < len(activity); i++ {
		for j := i + 1; j < len(activity); j++ {
			if activity[j].OccurredAt.After(activity[i].OccurredAt) {
				activity[i], activity[j] = activity[j], activity[i]
			}
		}
	}
	if len(activity) > 10 {
		activity = activity[:10]
	}
	return activity, pending
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func (s *dashboardService) AdminDashboard(ctx context.Context) (*AdminDashboard, error) {
	reviews, err := s.repo.PendingReviews(ctx, 10)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	roleCounts, err := s.userRepo.CountByRole(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	registrations, err := s.repo.RecentRegistrations(ctx, 10)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	delayed, err := s.repo.DelayedMilestones(ctx, 10)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	totalProjects, err := s.repo.CountProjects(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	totalUsers, err := s.repo.CountUsers(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	pendingCount, err := s.repo.CountProjects(ctx, bson.M{"status": workflows.StatusPending})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	verifiedCount, err := s.repo.CountProjects(ctx, bson.M{"status": workflows.StatusVerified})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &AdminDashboard{
		PendingReviews:      reviews,
		UsersByRole:         roleCounts,
		RecentRegistrations: registrations,
		DelayedMilestones:   delayed,
		Health: SystemHealth{
			TotalProjects: totalProjects,
			TotalUsers:    totalUsers,
			PendingCount:  pendingCount,
			VerifiedCount: verifiedCount,
		},
	}, nil
}
