package repository

import (
	"context"
	"time"

	"holding-backend/internal/database"
	"holding-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type ConversationRepo struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{
		conversations: database.GetCollection("conversations"),
		messages:      database.GetCollection("messages"),
	}
}

func (r *ConversationRepo) FindByUserAndStep(ctx context.Context, userID, stepID bson.ObjectID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"user_id": userID, "step_id": stepID}).Decode(&conversation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepo) Create(ctx context.Context, conversation *models.Conversation) error {
	conversation.CreatedAt = time.Now()
	result, err := r.conversations.InsertOne(ctx, conversation)
	if err != nil {
		return err
	}
	conversation.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *ConversationRepo) CreateMessage(ctx context.Context, message *models.Message) error {
	message.CreatedAt = time.Now()
	result, err := r.messages.InsertOne(ctx, message)
	if err != nil {
		return err
	}
	message.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// LastMessages returns up to limit messages in chronological order.
// When the conversation is longer than limit, the oldest are dropped.
func (r *ConversationRepo) LastMessages(ctx context.Context, conversationID bson.ObjectID, limit int) ([]models.Message, error) {
	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	// Cursor is newest-first; flip to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MessagesPage returns a newest-first page flipped to chronological
// order, for history pagination.
func (r *ConversationRepo) MessagesPage(ctx context.Context, conversationID bson.ObjectID, limit, offset int) ([]models.Message, error) {
	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetSkip(int64(offset)).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ConversationRepo) CountMessages(ctx context.Context, conversationID bson.ObjectID) (int64, error) {
	return r.messages.CountDocuments(ctx, bson.M{"conversation_id": conversationID})
}

func (r *ConversationRepo) DeleteMessages(ctx context.Context, conversationID bson.ObjectID) error {
	_, err := r.messages.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}

// EnsureIndexes creates necessary indexes for the chat collections
func (r *ConversationRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "step_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := r.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}
