package repository

import (
	"context"
	"time"

	"holding-backend/internal/database"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatRequestRepo records one row per chat request so the sliding-window
// rate limit survives restarts and is shared across instances. Rows
// expire through a TTL index; the window itself is enforced by query.
type ChatRequestRepo struct {
	collection *mongo.Collection
}

func NewChatRequestRepo() *ChatRequestRepo {
	return &ChatRequestRepo{
		collection: database.GetCollection("chat_requests"),
	}
}

func (r *ChatRequestRepo) Record(ctx context.Context, userID string, at time.Time) error {
	_, err := r.collection.InsertOne(ctx, bson.M{
		"user_id":    userID,
		"created_at": at,
	})
	return err
}

func (r *ChatRequestRepo) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	})
}

// EnsureIndexes creates necessary indexes for the chat_requests collection
func (r *ChatRequestRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(300), // TTL cleanup well past the window
		},
	})
	return err
}
