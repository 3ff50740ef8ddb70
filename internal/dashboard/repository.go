package dashboard

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/workflows"
)

// Time-series periods.
const (
	Period30Days   = "30days"
	Period6Months  = "6months"
	Period12Months = "12months"
)

// Repository reads aggregated projections straight from the collections.
// Every call recomputes from current data; nothing is cached.
type Repository interface {
	StatusBuckets(ctx context.Context) ([]StatusBucket, error)
	Totals(ctx context.Context) (*Totals, error)
	MonthlyTrend(ctx context.Context, months int) ([]TrendBucket, error)
	TopRegions(ctx context.Context, limit int) ([]RegionBucket, error)
	MethodDistribution(ctx context.Context) ([]MethodBucket, error)
	CreditsByVintage(ctx context.Context) ([]VintageBucket, error)
	CreditsByMethod(ctx context.Context) ([]MethodBucket, error)
	TopOrganizations(ctx context.Context, limit int) ([]OrgBucket, error)
	RegionalStats(ctx context.Context) ([]RegionBucket, error)
	TimeSeries(ctx context.Context, period string) ([]TrendBucket, error)
	UserStatusBuckets(ctx context.Context, userID primitive.ObjectID) ([]StatusBucket, error)
	UserProjects(ctx context.Context, userID primitive.ObjectID, limit int) ([]bson.M, error)
	PendingReviews(ctx context.Context, limit int) ([]PendingReview, error)
	RecentRegistrations(ctx context.Context, limit int) ([]RecentUser, error)
	DelayedMilestones(ctx context.Context, limit int) ([]MilestoneRef, error)
	CountProjects(ctx context.Context, filter bson.M) (int64, error)
	CountUsers(ctx context.Context, filter bson.M) (int64, error)
}

type mongoRepository struct {
	projects *mongo.Collection
	users    *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		projects: db.Collection("projects"),
		users:    db.Collection("users"),
	}
}

// creditedFilter restricts credit aggregates to approved and verified
// projects that actually carry credits.
func creditedFilter() bson.M {
	return bson.M{
		"status":  bson.M{"$in": []string{workflows.StatusApproved, workflows.StatusVerified}},
		"credits": bson.M{"$gt": 0},
	}
}

func (r *mongoRepository) StatusBuckets(ctx context.Context) ([]StatusBucket, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":     "$status",
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	return aggregate[StatusBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) Totals(ctx context.Context) (*Totals, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":        nil,
			"projects":   bson.M{"$sum": 1},
			"credits":    bson.M{"$sum": "$credits"},
			"area":       bson.M{"$sum": "$area"},
			"avgArea":    bson.M{"$avg": "$area"},
			"avgCredits": bson.M{"$avg": "$credits"},
		}},
	}
	rows, err := aggregate[struct {
		Projects   int64   `bson:"projects"`
		Credits    int64   `bson:"credits"`
		Area       float64 `bson:"area"`
		AvgArea    float64 `bson:"avgArea"`
		AvgCredits float64 `bson:"avgCredits"`
	}](ctx, r.projects, pipeline)
	if err != nil {
		return nil, err
	}

	totals := &Totals{}
	if len(rows) > 0 {
		totals.Projects = rows[0].Projects
		totals.Credits = rows[0].Credits
		totals.AreaHa = rows[0].Area
		totals.AvgAreaHa = rows[0].AvgArea
		totals.AvgCredits = rows[0].AvgCredits
	}

	activeUsers, err := r.users.CountDocuments(ctx, bson.M{"status": "active"})
	if err != nil {
		return nil, err
	}
	totals.ActiveUsers = activeUsers
	return totals, nil
}

func (r *mongoRepository) MonthlyTrend(ctx context.Context, months int) ([]TrendBucket, error) {
	since := time.Now().AddDate(0, -months, 0)
	pipeline := []bson.M{
		{"$match": bson.M{"created_at": bson.M{"$gte": since}}},
		{"$group": bson.M{
			"_id":     bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$created_at"}},
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	return aggregate[TrendBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) TopRegions(ctx context.Context, limit int) ([]RegionBucket, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"status": bson.M{"$in": []string{workflows.StatusApproved, workflows.StatusVerified}}}},
		{"$group": bson.M{
			"_id":     "$region",
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"credits": -1}},
		{"$limit": limit},
	}
	return aggregate[RegionBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) MethodDistribution(ctx context.Context) ([]MethodBucket, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$method",
			"count": bson.M{"$sum": 1},
			"area":  bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"count": -1}},
	}
	return aggregate[MethodBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) CreditsByVintage(ctx context.Context) ([]VintageBucket, error) {
	pipeline := []bson.M{
		{"$match": creditedFilter()},
		{"$group": bson.M{
			"_id":     "$vintage",
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	return aggregate[VintageBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) CreditsByMethod(ctx context.Context) ([]MethodBucket, error) {
	pipeline := []bson.M{
		{"$match": creditedFilter()},
		{"$group": bson.M{
			"_id":   "$method",
			"count": bson.M{"$sum": 1},
			"area":  bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	return aggregate[MethodBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) TopOrganizations(ctx context.Context, limit int) ([]OrgBucket, error) {
	pipeline := []bson.M{
		{"$match": creditedFilter()},
		{"$group": bson.M{
			"_id":     "$organization",
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"credits": -1}},
		{"$limit": limit},
	}
	return aggregate[OrgBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) RegionalStats(ctx context.Context) ([]RegionBucket, error) {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":     "$region",
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
			"approved": bson.M{"$sum": bson.M{"$cond": []any{
				bson.M{"$eq": []any{"$status", workflows.StatusApproved}}, 1, 0}}},
			"verified": bson.M{"$sum": bson.M{"$cond": []any{
				bson.M{"$eq": []any{"$status", workflows.StatusVerified}}, 1, 0}}},
			"pending": bson.M{"$sum": bson.M{"$cond": []any{
				bson.M{"$eq": []any{"$status", workflows.StatusPending}}, 1, 0}}},
		}},
		{"$sort": bson.M{"credits": -1}},
	}
	return aggregate[RegionBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) TimeSeries(ctx context.Context, period string) ([]TrendBucket, error) {
	var since time.Time
	format := "%Y-%m"
	switch period {
	case Period30Days:
		since = time.Now().AddDate(0, 0, -30)
		format = "%Y-%m-%d"
	case Period6Months:
		since = time.Now().AddDate(0, -6, 0)
	default:
		since = time.Now().AddDate(0, -12, 0)
	}

	pipeline := []bson.M{
		{"$match": bson.M{"created_at": bson.M{"$gte": since}}},
		{"$group": bson.M{
			"_id":     bson.M{"$dateToString": bson.M{"format": format, "date": "$created_at"}},
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	return aggregate[TrendBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) UserStatusBuckets(ctx context.Context, userID primitive.ObjectID) ([]StatusBucket, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"submitted_by": userID}},
		{"$group": bson.M{
			"_id":     "$status",
			"count":   bson.M{"$sum": 1},
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area"},
		}},
		{"$sort": bson.M{"_id": 1}},
	}
	return aggregate[StatusBucket](ctx, r.projects, pipeline)
}

func (r *mongoRepository) UserProjects(ctx context.Context, userID primitive.ObjectID, limit int) ([]bson.M, error) {
	opts := options.Find().
		SetSort(bson.M{"updated_at": -1}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{
			"name": 1, "status": 1, "created_at": 1, "updated_at": 1,
			"review_comments": 1, "milestones": 1,
		})
	cursor, err := r.projects.Find(ctx, bson.M{"submitted_by": userID}, opts)
	if err != nil {
		return nil, err
	}
	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *mongoRepository) PendingReviews(ctx context.Context, limit int) ([]PendingReview, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"status": bson.M{"$in": []string{workflows.StatusPending, workflows.StatusUnderReview}}}},
		{"$sort": bson.M{"created_at": 1}},
		{"$limit": limit},
		{"$project": bson.M{
			"name": 1, "organization": 1, "region": 1, "status": 1, "created_at": 1,
		}},
	}
	return aggregate[PendingReview](ctx, r.projects, pipeline)
}

func (r *mongoRepository) RecentRegistrations(ctx context.Context, limit int) ([]RecentUser, error) {
	pipeline := []bson.M{
		{"$sort": bson.M{"created_at": -1}},
		{"$limit": limit},
		{"$project": bson.M{"full_name": 1, "email": 1, "role": 1, "created_at": 1}},
	}
	return aggregate[RecentUser](ctx, r.users, pipeline)
}

func (r *mongoRepository) DelayedMilestones(ctx context.Context, limit int) ([]MilestoneRef, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"milestones.status": "delayed"}},
		{"$unwind": "$milestones"},
		{"$match": bson.M{"milestones.status": "delayed"}},
		{"$limit": limit},
		{"$project": bson.M{
			"name":      1,
			"milestone": "$milestones",
		}},
	}
	rows, err := aggregate[struct {
		ID        primitive.ObjectID `bson:"_id"`
		Name      string             `bson:"name"`
		Milestone struct {
			ID         primitive.ObjectID `bson:"_id"`
			Title      string             `bson:"title"`
			Status     string             `bson:"status"`
			TargetDate *time.Time         `bson:"target_date"`
		} `bson:"milestone"`
	}](ctx, r.projects, pipeline)
	if err != nil {
		return nil, err
	}

	refs := make([]MilestoneRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, MilestoneRef{
			ProjectID:   row.ID,
			ProjectName: row.Name,
			MilestoneID: row.Milestone.ID,
			Title:       row.Milestone.Title,
			Status:      row.Milestone.Status,
			TargetDate:  row.Milestone.TargetDate,
		})
	}
	return refs, nil
}

func (r *mongoRepository) CountProjects(ctx context.Context, filter bson.M) (int64, error) {
	return r.projects.CountDocuments(ctx, filter)
}

func (r *mongoRepository) CountUsers(ctx context.Context, filter bson.M) (int64, error) {
	return r.users.CountDocuments(ctx, filter)
}

func aggregate[T any](ctx context.Context, c *mongo.Collection, pipeline []bson.M) ([]T, error) {
	cursor, err := c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
