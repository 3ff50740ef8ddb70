package main

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/credits"
)

// ReconcileWorker repairs drift between the collections: the user→project
// reference lists and the per-user credit/area totals are both rebuilt from
// their sources of truth (the projects collection and the credit ledger).
type ReconcileWorker struct {
	db     *mongo.Database
	ledger credits.Ledger
	logger *zap.Logger
	config ReconcileWorkerConfig
}

// ReconcileWorkerConfig configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	RunTimeout time.Duration
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		RunTimeout: 5 * time.Minute,
	}
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(db *mongo.Database, ledger credits.Ledger, logger *zap.Logger, config ReconcileWorkerConfig) *ReconcileWorker {
	return &ReconcileWorker{
		db:     db,
		ledger: ledger,
		logger: logger,
		config: config,
	}
}

// Run executes one reconciliation pass.
func (w *ReconcileWorker) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.RunTimeout)
	defer cancel()

	start := time.Now()
	if err := w.reconcileProjectRefs(ctx); err != nil {
		w.logger.Error("failed to reconcile project references", zap.Error(err))
	}
	if err := w.reconcileTotals(ctx); err != nil {
		w.logger.Error("failed to reconcile user totals", zap.Error(err))
	}
	w.logger.Info("reconciliation pass finished", zap.Duration("took", time.Since(start)))
}

// reconcileProjectRefs rebuilds every user's projects array from the
// projects collection. Users owning no projects get an empty array.
func (w *ReconcileWorker) reconcileProjectRefs(ctx context.Context) error {
	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":      "$submitted_by",
			"projects": bson.M{"$push": "$_id"},
		}},
	}
	cursor, err := w.db.Collection("projects").Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}

	var groups []struct {
		UserID   primitive.ObjectID   `bson:"_id"`
		Projects []primitive.ObjectID `bson:"projects"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return err
	}

	users := w.db.Collection("users")
	owners := make([]primitive.ObjectID, 0, len(groups))
	for _, g := range groups {
		owners = append(owners, g.UserID)
		if _, err := users.UpdateOne(ctx,
			bson.M{"_id": g.UserID},
			bson.M{"$set": bson.M{"projects": g.Projects}},
		); err != nil {
			w.logger.Error("failed to rewrite project references",
				zap.String("user_id", g.UserID.Hex()), zap.Error(err))
		}
	}

	_, err = users.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$nin": owners}, "projects.0": bson.M{"$exists": true}},
		bson.M{"$set": bson.M{"projects": []primitive.ObjectID{}}},
	)
	return err
}

// reconcileTotals recomputes credit and area totals from the ledger. Users
// without any grant are reset to zero.
func (w *ReconcileWorker) reconcileTotals(ctx context.Context) error {
	userIDs, err := w.ledger.UserIDs(ctx)
	if err != nil {
		return err
	}

	users := w.db.Collection("users")
	for _, userID := range userIDs {
		totals, err := w.ledger.TotalsForUser(ctx, userID)
		if err != nil {
			w.logger.Error("failed to sum ledger totals",
				zap.String("user_id", userID.Hex()), zap.Error(err))
			continue
		}
		if _, err := users.UpdateOne(ctx,
			bson.M{"_id": userID},
			bson.M{"$set": bson.M{
				"total_credits": totals.Credits,
				"total_area":    totals.AreaHa,
			}},
		); err != nil {
			w.logger.Error("failed to rewrite user totals",
				zap.String("user_id", userID.Hex()), zap.Error(err))
		}
	}

	_, err = users.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$nin": userIDs}, "total_credits": bson.M{"$gt": 0}},
		bson.M{"$set": bson.M{"total_credits": int64(0), "total_area": float64(0)}},
	)
	return err
}
