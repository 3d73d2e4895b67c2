package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type StepType string

const (
	StepPersonalData     StepType = "personal_data"
	StepLLMChat          StepType = "llm_chat"
	StepDataVerification StepType = "data_verification"
)

// StructuredDataKey is the step data key under which the serialized
// StructuredData document lives for LLM chat steps.
const StructuredDataKey = "structured_data"

// OnboardingFlow is the flow template shared across users.
type OnboardingFlow struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description" json:"description"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at" json:"updated_at"`
}

// OnboardingStep is a typed step inside a flow template.
type OnboardingStep struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	FlowID      bson.ObjectID `bson:"flow_id" json:"flow_id"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description" json:"description"`
	Order       int           `bson:"order" json:"order"`
	Type        StepType      `bson:"type" json:"type"`
}

// UserOnboardingFlow is one user's instance of a flow template.
type UserOnboardingFlow struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      bson.ObjectID `bson:"user_id" json:"user_id"`
	FlowID      bson.ObjectID `bson:"flow_id" json:"flow_id"`
	IsCompleted bool          `bson:"is_completed" json:"is_completed"`
	StartedAt   time.Time     `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time    `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// UserOnboardingStep tracks a user's progress on one step. Data is an
// open keyed payload; LLM chat steps keep their extracted structured
// data under StructuredDataKey.
type UserOnboardingStep struct {
	ID          bson.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserFlowID  bson.ObjectID  `bson:"user_flow_id" json:"user_flow_id"`
	StepID      bson.ObjectID  `bson:"step_id" json:"step_id"`
	IsCompleted bool           `bson:"is_completed" json:"is_completed"`
	StartedAt   *time.Time     `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Data        map[string]any `bson:"data,omitempty" json:"data,omitempty"`
}
