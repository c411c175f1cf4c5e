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
)

func (r *MongoBookingRepo) findOne(ctx context.Context, filter bson.M) (*models.BookingRecord, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var rec models.BookingRecord
	if err := r.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrBookingNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindByID retrieves a booking by its id.
func (r *MongoBookingRepo) FindByID(ctx context.Context, id string) (*models.BookingRecord, error) {
	rec, err := r.findOne(ctx, bson.M{"id": id})
	if err != nil && !errors.Is(err, entity.ErrBookingNotFound) {
		return nil, fmt.Errorf("error fetching booking with id %s: %w", id, err)
	}
	return rec, err
}

// FindByReference retrieves a booking by its BK- reference.
func (r *MongoBookingRepo) FindByReference(ctx context.Context, reference string) (*models.BookingRecord, error) {
	rec, err := r.findOne(ctx, bson.M{"reference": reference})
	if err != nil && !errors.Is(err, entity.ErrBookingNotFound) {
		return nil, fmt.Errorf("error fetching booking with reference %s: %w", reference, err)
	}
	return rec, err
}

// FindByParent lists a parent's bookings, newest first.
func (r *MongoBookingRepo) FindByParent(ctx context.Context, parentID string) ([]models.BookingRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"parentId": parentID}, opts)
}

// FindByChildren returns every booking holding one of childKeys. Inactive
// bookings are included; the validator decides what counts.
func (r *MongoBookingRepo) FindByChildren(ctx context.Context, childKeys []string) ([]models.BookingRecord, error) {
	if len(childKeys) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"childKeys": bson.M{"$in": childKeys}})
}

func (r *MongoBookingRepo) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.BookingRecord, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("error finding bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []models.BookingRecord
	for cursor.Next(ctx) {
		var rec models.BookingRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("error decoding booking: %w", err)
		}
		out = append(out, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}
