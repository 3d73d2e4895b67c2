package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type SenderType string

const (
	SenderUser       SenderType = "user"
	SenderLLM        SenderType = "llm"
	SenderConsultant SenderType = "consultant"
	SenderSystem     SenderType = "system"
)

// Conversation is the single chat thread between a user and the
// assistant for one onboarding step.
type Conversation struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    bson.ObjectID `bson:"user_id" json:"user_id"`
	StepID    bson.ObjectID `bson:"step_id" json:"step_id"`
	Title     string        `bson:"title" json:"title"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
}

type Message struct {
	ID             bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	ConversationID bson.ObjectID  `bson:"conversation_id" json:"conversation_id"`
	SenderID       *bson.ObjectID `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	SenderType     SenderType     `bson:"sender_type" json:"sender_type"`
	Content        string         `bson:"content" json:"content"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
}
