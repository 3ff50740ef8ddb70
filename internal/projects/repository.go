package projects

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blue-carbon/mrv-portal/mrv-portal-backend/pkg/workflows"
)

// ErrNotFound is returned when a project id does not resolve.
var ErrNotFound = errors.New("project not found")

// ListFilter narrows the project listing.
type ListFilter struct {
	Status       string
	Region       string
	Organization string
	Method       string
	Search       string
	PublicOnly   bool
	SubmittedBy  *primitive.ObjectID
	Page         int
	Limit        int
}

// Repository is the persistence boundary for projects.
type Repository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Project, error)
	Replace(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter ListFilter) ([]Project, int64, error)
	CountActiveByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	StatusCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error)
	MethodCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error)
	MonthlyCountsByUser(ctx context.Context, userID primitive.ObjectID, months int) (map[string]int64, error)
}

type mongoRepository struct {
	c *mongo.Collection
}

// NewRepository creates a projects repository over the given database.
func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{c: db.Collection("projects")}
}

// EnsureIndexes creates the indexes the project queries rely on, including
// the 2dsphere index for proximity queries on the location point.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("projects").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "submitted_by", Value: 1}}},
		{Keys: bson.D{{Key: "region", Value: 1}}},
		{Keys: bson.D{{Key: "vintage", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "is_public", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
	})
	return err
}

func (r *mongoRepository) Create(ctx context.Context, project *Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	res, err := r.c.InsertOne(ctx, project)
	if err != nil {
		return err
	}
	project.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*Project, error) {
	var p Project
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *mongoRepository) Replace(ctx context.Context, project *Project) error {
	project.UpdatedAt = time.Now()
	res, err := r.c.ReplaceOne(ctx, bson.M{"_id": project.ID}, project)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) List(ctx context.Context, filter ListFilter) ([]Project, int64, error) {
	query := bson.M{}
	if filter.PublicOnly {
		query["is_public"] = true
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Method != "" {
		query["method"] = filter.Method
	}
	if filter.Region != "" {
		query["region"] = primitive.Regex{Pattern: filter.Region, Options: "i"}
	}
	if filter.Organization != "" {
		query["organization"] = primitive.Regex{Pattern: filter.Organization, Options: "i"}
	}
	if filter.SubmittedBy != nil {
		query["submitted_by"] = *filter.SubmittedBy
	}
	if filter.Search != "" {
		re := primitive.Regex{Pattern: filter.Search, Options: "i"}
		query["$or"] = []bson.M{
			{"name": re},
			{"description": re},
			{"organization": re},
			{"region": re},
		}
	}

	total, err := r.c.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.c.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// StatusCountsByUser groups one user's projects by status.
func (r *mongoRepository) StatusCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	return r.countsByUser(ctx, userID, "$status", nil)
}

// MethodCountsByUser groups one user's projects by restoration method.
func (r *mongoRepository) MethodCountsByUser(ctx context.Context, userID primitive.ObjectID) (map[string]int64, error) {
	return r.countsByUser(ctx, userID, "$method", nil)
}

// MonthlyCountsByUser buckets one user's project creations by calendar
// month ("2006-01") over the trailing months window.
func (r *mongoRepository) MonthlyCountsByUser(ctx context.Context, userID primitive.ObjectID, months int) (map[string]int64, error) {
	since := time.Now().AddDate(0, -months, 0)
	key := bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": "$created_at"}}
	return r.countsByUser(ctx, userID, key, bson.M{"created_at": bson.M{"$gte": since}})
}

func (r *mongoRepository) countsByUser(ctx context.Context, userID primitive.ObjectID, key any, extra bson.M) (map[string]int64, error) {
	match := bson.M{"submitted_by": userID}
	for k, v := range extra {
		match[k] = v
	}
	cur, err := r.c.Aggregate(ctx, []bson.M{
		{"$match": match},
		{"$group": bson.M{"_id": key, "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}

// CountActiveByUser counts the user's projects still in a non-settled
// status. User deactivation is refused while this is non-zero.
func (r *mongoRepository) CountActiveByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.c.CountDocuments(ctx, bson.M{
		"submitted_by": userID,
		"status": bson.M{"$in": []string{
			workflows.StatusPending, workflows.StatusApproved, workflows.StatusUnderReview,
		}},
	})
}
