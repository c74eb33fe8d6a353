package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "classbook/internal/bookings/errors"
	"classbook/pkg/config"
	mongotx "classbook/pkg/db/mongo"
	"classbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	FindByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error)
	FindActiveByUserAndClassroom(ctx context.Context, userID, classroomID, excludeBookingID string) (*model.Booking, error)
	FindInRange(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error)
	Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, id string) error
	DeleteByClassroom(ctx context.Context, classroomID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	CountByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var booking model.Booking
	err = r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	return r.findSorted(ctx, bson.M{}, limit, offset)
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findSorted(ctx, bson.M{"user_id": userID}, limit, offset)
}

func (r *mongoBookingRepository) FindByClassroom(
	ctx context.Context,
	classroomID string,
	startTime, endTime *time.Time,
	limit int, offset int64,
) ([]*model.Booking, error) {
	return r.findSorted(ctx, r.buildSearchFilter(classroomID, startTime, endTime), limit, offset)
}

// FindActiveByUserAndClassroom returns one of the user's current bookings
// on the classroom, if any. Cancellation deletes bookings, so any stored
// row is active. The exclusion must happen in the query: a user can hold
// several bookings on one classroom, and filtering after a FindOne would
// miss the others.
func (r *mongoBookingRepository) FindActiveByUserAndClassroom(ctx context.Context, userID, classroomID, excludeBookingID string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"user_id":      userID,
		"classroom_id": classroomID,
	}
	if excludeBookingID != "" {
		if objectID, err := primitive.ObjectIDFromHex(excludeBookingID); err == nil {
			filter["_id"] = bson.M{"$ne": objectID}
		}
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking by user and classroom: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindInRange(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error) {
	filter := bson.M{}
	if timeFilter := buildTimeFilter(startTime, endTime); len(timeFilter) > 0 {
		filter = timeFilter
	}
	return r.findSorted(ctx, filter, limit, offset)
}

func (r *mongoBookingRepository) findSorted(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"start_time": booking.StartTime,
			"end_time":   booking.EndTime,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, bookingserrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoBookingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}

	return nil
}

// DeleteByClassroom removes all bookings of a classroom. Used by the
// classroom delete cascade.
func (r *mongoBookingRepository) DeleteByClassroom(ctx context.Context, classroomID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"classroom_id": classroomID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookings by classroom: %w", err)
	}

	return result.DeletedCount, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{})
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, bson.M{"user_id": userID})
}

func (r *mongoBookingRepository) CountByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time) (int64, error) {
	return r.count(ctx, r.buildSearchFilter(classroomID, startTime, endTime))
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

// buildSearchFilter matches bookings on a classroom that intersect the
// half-open window [startTime, endTime).
func (r *mongoBookingRepository) buildSearchFilter(classroomID string, startTime, endTime *time.Time) bson.M {
	filter := bson.M{
		"classroom_id": classroomID,
	}

	if timeFilter := buildTimeFilter(startTime, endTime); len(timeFilter) > 0 {
		filter["$and"] = []bson.M{timeFilter}
	}

	return filter
}

func buildTimeFilter(startTime, endTime *time.Time) bson.M {
	switch {
	case startTime != nil && endTime != nil:
		return bson.M{
			"start_time": bson.M{"$lt": *endTime},
			"end_time":   bson.M{"$gt": *startTime},
		}
	case startTime != nil:
		return bson.M{
			"end_time": bson.M{"$gt": *startTime},
		}
	case endTime != nil:
		return bson.M{
			"start_time": bson.M{"$lt": *endTime},
		}
	}
	return bson.M{}
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
