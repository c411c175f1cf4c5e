package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const collectionName = "bookings"

// MongoBookingRepo stores bookings as one document each. Writes are guarded
// by the document's version field.
type MongoBookingRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
	now    func() time.Time
}

// NewMongoBookingRepo creates the repository over db and makes sure its
// indexes exist.
func NewMongoBookingRepo(db *mongo.Database, logger *zap.Logger) (*MongoBookingRepo, error) {
	if db == nil {
		return nil, fmt.Errorf("booking repository initialization error: database is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := &MongoBookingRepo{
		coll:   db.Collection(collectionName),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if err := repo.EnsureIndexes(); err != nil {
		logger.Warn("failed to create booking indexes", zap.Error(err))
	}
	return repo, nil
}

// newContext derives the per-query timeout from the caller's context.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

// EnsureIndexes creates the necessary indexes on the bookings collection.
func (r *MongoBookingRepo) EnsureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_reference"),
		},
		// Parent dashboard listing.
		{
			Keys:    bson.D{{Key: "parentId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("parent_created_idx"),
		},
		// Per-child snapshot used by the duplicate and availability checks.
		{
			Keys:    bson.D{{Key: "childKeys", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("child_status_idx"),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}
