package repository

import (
	"context"
	"time"

	"classbook/pkg/config"
	"classbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ClassroomLockRepository provides operations for per-classroom advisory locks.
type ClassroomLockRepository interface {
	Create(ctx context.Context, lock *model.ClassroomLock) (*model.ClassroomLock, error)
	Delete(ctx context.Context, lockID string) error
}

type mongoClassroomLockRepository struct {
	collection *mongo.Collection
}

func NewClassroomLockRepository(cfg *config.Config) ClassroomLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoClassroomLockRepository{
		collection: db.Collection("Classroom_locks"),
	}
}

// Returns duplicate key error if lock already exists
func (r *mongoClassroomLockRepository) Create(ctx context.Context, lock *model.ClassroomLock) (*model.ClassroomLock, error) {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	if err != nil {
		return nil, err
	}

	return lock, nil
}

// Delete removes an advisory lock
func (r *mongoClassroomLockRepository) Delete(ctx context.Context, lockID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID})
	return err
}
