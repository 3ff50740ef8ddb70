package users

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a user id or email does not resolve.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when an active user already holds the email.
var ErrDuplicateEmail = errors.New("email already in use")

// ListFilter narrows the admin user listing.
type ListFilter struct {
	Role   string
	Status string
	Search string
	Page   int
	Limit  int
}

// Repository is the persistence boundary for users.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int64, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*User, error)
	SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error

	RecordLoginSuccess(ctx context.Context, id primitive.ObjectID) error
	RecordLoginFailure(ctx context.Context, id primitive.ObjectID) error

	PushProject(ctx context.Context, userID, projectID primitive.ObjectID) error
	PullProject(ctx context.Context, userID, projectID primitive.ObjectID) error
	SetTotals(ctx context.Context, userID primitive.ObjectID, credits int64, area float64) error

	CountByRole(ctx context.Context) (map[string]int64, error)
}

type mongoRepository struct {
	c *mongo.Collection
}

// NewRepository creates a users repository over the given database.
func NewRepository(db *mongo.Database) Repository {
	return &mongoRepository{c: db.Collection("users")}
}

// EnsureIndexes creates the indexes the user queries rely on. The email
// uniqueness constraint applies only to active accounts.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": StatusActive}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *mongoRepository) Create(ctx context.Context, user *User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = StatusActive
	}
	if user.Projects == nil {
		user.Projects = []primitive.ObjectID{}
	}

	res, err := r.c.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var u User
	if err := r.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *mongoRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.c.FindOne(ctx, bson.M{"email": email, "status": StatusActive}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *mongoRepository) List(ctx context.Context, filter ListFilter) ([]User, int64, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		re := primitive.Regex{Pattern: filter.Search, Options: "i"}
		query["$or"] = []bson.M{
			{"full_name": re},
			{"email": re},
			{"organization": re},
			{"location": re},
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
		limit = 20
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

	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *mongoRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, set bson.M) (*User, error) {
	set["updated_at"] = time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u User
	err := r.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *mongoRepository) SetPasswordHash(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := r.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoRepository) RecordLoginSuccess(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := r.c.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"last_login": now, "login_attempts": 0, "updated_at": now},
		"$unset": bson.M{"lock_until": ""},
	})
	return err
}

func (r *mongoRepository) RecordLoginFailure(ctx context.Context, id primitive.ObjectID) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	update := bson.M{
		"$inc": bson.M{"login_attempts": 1},
		"$set": bson.M{"updated_at": now},
	}
	if u.LoginAttempts+1 >= MaxLoginAttempts {
		until := now.Add(LockDuration)
		update["$set"] = bson.M{"updated_at": now, "lock_until": until, "login_attempts": 0}
		delete(update, "$inc")
	}
	_, err = r.c.UpdateByID(ctx, id, update)
	return err
}

func (r *mongoRepository) PushProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	_, err := r.c.UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"projects": projectID},
		"$set":      bson.M{"updated_at": time.Now()},
	})
	return err
}

func (r *mongoRepository) PullProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	_, err := r.c.UpdateByID(ctx, userID, bson.M{
		"$pull": bson.M{"projects": projectID},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	return err
}

func (r *mongoRepository) SetTotals(ctx context.Context, userID primitive.ObjectID, credits int64, area float64) error {
	_, err := r.c.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"total_credits": credits,
		"total_area":    area,
		"updated_at":    time.Now(),
	}})
	return err
}

func (r *mongoRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$group": bson.M{"_id": "$role", "count": bson.M{"$sum": 1}}},
	}
	cur, err := r.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]int64)
	for cur.Next(ctx) {
		var doc struct {
			Role  string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out[doc.Role] = doc.Count
	}
	return out, cur.Err()
}
