package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"kidsclub/models"
	"kidsclub/services/booking/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Create inserts a new booking at version 1.
func (r *MongoBookingRepo) Create(ctx context.Context, rec *models.BookingRecord) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	rec.Version = 1
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		rec.Version = 0
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("booking %s already exists: %w", rec.ID, err)
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// Update replaces the document if nobody wrote it since rec was read, and
// bumps rec.Version on success.
func (r *MongoBookingRepo) Update(ctx context.Context, rec *models.BookingRecord) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	expected := rec.Version
	rec.Version = expected + 1
	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": rec.ID, "version": expected}, rec)
	if err != nil {
		rec.Version = expected
		return fmt.Errorf("failed to update booking %s: %w", rec.ID, err)
	}
	if res.MatchedCount == 0 {
		rec.Version = expected
		return r.missOrConflict(ctx, rec.ID)
	}
	return nil
}

// Delete soft-deletes the booking.
func (r *MongoBookingRepo) Delete(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{
			"$set": bson.M{"deletedAt": at, "updatedAt": at},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("failed to delete booking %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return entity.ErrBookingNotFound
	}
	return nil
}

// missOrConflict tells a lost race from a missing document.
func (r *MongoBookingRepo) missOrConflict(ctx context.Context, id string) error {
	n, err := r.coll.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to check booking %s: %w", id, err)
	}
	if n == 0 {
		return entity.ErrBookingNotFound
	}
	r.logger.Debug("optimistic update lost", zap.String("bookingId", id))
	return entity.ErrVersionConflict
}
