// Package credits keeps the credit-grant ledger. Each project holds at most
// one grant, written when a status transition into approved or verified
// supplies a credit amount. User totals are always derived by summing
// grants, so re-granting replaces the previous entry instead of
// double-counting.
package credits

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Grant records credits issued to a project at a status transition.
type Grant struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID primitive.ObjectID `bson:"project_id" json:"projectId"`
	UserID    primitive.ObjectID `bson:"user_id" json:"userId"`
	Status    string             `bson:"status" json:"status"`
	Credits   int64              `bson:"credits" json:"credits"`
	AreaHa    float64            `bson:"area_ha" json:"areaHa"`
	GrantedBy string             `bson:"granted_by" json:"grantedBy"`
	GrantedAt time.Time          `bson:"granted_at" json:"grantedAt"`
}

// Totals is the ledger sum for one user.
type Totals struct {
	Credits int64
	AreaHa  float64
}

// Ledger is the persistence boundary for credit grants. Grants survive
// project deletion: credits already issued to a user stay on their totals.
type Ledger interface {
	Record(ctx context.Context, grant *Grant) error
	TotalsForUser(ctx context.Context, userID primitive.ObjectID) (Totals, error)
	UserIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

type mongoLedger struct {
	c *mongo.Collection
}

// NewLedger creates a ledger over the given database.
func NewLedger(db *mongo.Database) Ledger {
	return &mongoLedger{c: db.Collection("credit_grants")}
}

// EnsureIndexes creates the one-grant-per-project constraint.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("credit_grants").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "project_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	return err
}

// Record upserts the grant for its project. A repeated qualifying
// transition replaces the previous grant rather than adding to it.
func (l *mongoLedger) Record(ctx context.Context, grant *Grant) error {
	grant.GrantedAt = time.Now()
	_, err := l.c.UpdateOne(ctx,
		bson.M{"project_id": grant.ProjectID},
		bson.M{"$set": bson.M{
			"user_id":    grant.UserID,
			"status":     grant.Status,
			"credits":    grant.Credits,
			"area_ha":    grant.AreaHa,
			"granted_by": grant.GrantedBy,
			"granted_at": grant.GrantedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (l *mongoLedger) TotalsForUser(ctx context.Context, userID primitive.ObjectID) (Totals, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"user_id": userID}},
		{"$group": bson.M{
			"_id":     nil,
			"credits": bson.M{"$sum": "$credits"},
			"area":    bson.M{"$sum": "$area_ha"},
		}},
	}
	cur, err := l.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Totals{}, err
	}
	defer cur.Close(ctx)

	if cur.Next(ctx) {
		var doc struct {
			Credits int64   `bson:"credits"`
			Area    float64 `bson:"area"`
		}
		if err := cur.Decode(&doc); err != nil {
			return Totals{}, err
		}
		return Totals{Credits: doc.Credits, AreaHa: doc.Area}, nil
	}
	return Totals{}, cur.Err()
}

// UserIDs lists every user holding at least one grant. The reconciliation
// worker uses it to recompute denormalized totals.
func (l *mongoLedger) UserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	raw, err := l.c.Distinct(ctx, "user_id", bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(primitive.ObjectID); ok {
			out = append(out, id)
		}
	}
	return out, nil
}
