package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kidsclub/models"
	"kidsclub/services/booking/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Cancel cancels the booking, tears down its open sessions and marks what
// was paid as refunded in a single document update. The update only applies
// to the version the caller checked, so a session completed or a payment
// recorded in between turns into ErrVersionConflict.
func (r *MongoBookingRepo) Cancel(ctx context.Context, id, reason string, version int64) (*models.BookingRecord, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	now := r.now()
	filter := bson.M{
		"id":      id,
		"status":  bson.M{"$ne": string(entity.StatusCancelled)},
		"version": version,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rec models.BookingRecord
	err := r.coll.FindOneAndUpdate(ctx, filter, cancelPipeline(reason, now), opts).Decode(&rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to cancel booking %s: %w", id, err)
	}

	current, findErr := r.findOne(ctx, bson.M{"id": id})
	if findErr != nil {
		return nil, findErr
	}
	if current.Status == string(entity.StatusCancelled) {
		return nil, &entity.InvalidStateError{Operation: "cancel", Status: entity.StatusCancelled, Message: "booking is already cancelled"}
	}
	r.logger.Debug("cancel lost to a concurrent update", zap.String("bookingId", id), zap.Int64("version", version))
	return nil, entity.ErrVersionConflict
}

func cancelPipeline(reason string, now time.Time) mongo.Pipeline {
	hasPaid := bson.D{{Key: "$gt", Value: bson.A{"$paidAmount", 0}}}
	openSession := bson.D{{Key: "$in", Value: bson.A{
		"$$s.status",
		bson.A{string(entity.ScheduleScheduled), string(entity.ScheduleRescheduled)},
	}}}

	return mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: bson.D{{Key: "$literal", Value: string(entity.StatusCancelled)}}},
			{Key: "cancellationReason", Value: bson.D{{Key: "$literal", Value: reason}}},
			{Key: "cancelledAt", Value: now},
			{Key: "updatedAt", Value: now},
			{Key: "schedules", Value: bson.D{{Key: "$map", Value: bson.D{
				{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$schedules", bson.A{}}}}},
				{Key: "as", Value: "s"},
				{Key: "in", Value: bson.D{{Key: "$cond", Value: bson.D{
					{Key: "if", Value: openSession},
					{Key: "then", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{
						"$$s",
						bson.D{
							{Key: "status", Value: bson.D{{Key: "$literal", Value: string(entity.ScheduleCancelled)}}},
							{Key: "cancellationReason", Value: bson.D{{Key: "$literal", Value: reason}}},
							{Key: "cancelledAt", Value: now},
						},
					}}}},
					{Key: "else", Value: "$$s"},
				}}}},
			}}}},
			// Every field below reads the pre-update paidAmount.
			{Key: "refundedAmount", Value: bson.D{{Key: "$cond", Value: bson.A{
				hasPaid,
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$refundedAmount", 0}}}, "$paidAmount"}}},
				bson.D{{Key: "$ifNull", Value: bson.A{"$refundedAmount", 0}}},
			}}}},
			{Key: "paymentStatus", Value: bson.D{{Key: "$cond", Value: bson.A{
				hasPaid,
				bson.D{{Key: "$literal", Value: string(entity.PaymentRefunded)}},
				"$paymentStatus",
			}}}},
			{Key: "paidAmount", Value: bson.D{{Key: "$literal", Value: 0.0}}},
			{Key: "outstandingAmount", Value: "$totalPrice"},
			{Key: "version", Value: bson.D{{Key: "$add", Value: bson.A{"$version", 1}}}},
		}}},
	}
}
