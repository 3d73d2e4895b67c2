package repository

import (
	"context"
	"time"

	"holding-backend/internal/apperr"
	"holding-backend/internal/database"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StepLockRepo is an advisory lock serializing chat turns per
// (user, step) pair. The unique index makes acquisition atomic; the TTL
// index releases locks abandoned by a crashed process.
type StepLockRepo struct {
	collection *mongo.Collection
}

func NewStepLockRepo() *StepLockRepo {
	return &StepLockRepo{
		collection: database.GetCollection("chat_step_locks"),
	}
}

func (r *StepLockRepo) Acquire(ctx context.Context, userID, stepID bson.ObjectID) error {
	_, err := r.collection.InsertOne(ctx, bson.M{
		"user_id":    userID,
		"step_id":    stepID,
		"expires_at": time.Now().Add(5 * time.Minute),
	})
	if mongo.IsDuplicateKeyError(err) {
		return apperr.InvalidState("another chat request for this step is in progress")
	}
	return err
}

func (r *StepLockRepo) Release(ctx context.Context, userID, stepID bson.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "step_id": stepID})
	return err
}

// EnsureIndexes creates necessary indexes for the chat_step_locks collection
func (r *StepLockRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "step_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	return err
}
