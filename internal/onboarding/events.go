package onboarding

import (
	"context"

	"holding-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// StepCompletedEvent is published by the engine when an LLM chat step
// completes, or when its data changes while already completed. Keeps
// the engine decoupled from whatever reacts (requirement synthesis).
type StepCompletedEvent struct {
	UserID   bson.ObjectID
	UserFlow *models.UserOnboardingFlow
	UserStep *models.UserOnboardingStep
	StepType models.StepType
}

// StepSubscriber reacts to step completion. Subscriber errors abort the
// triggering update so the caller sees the failure.
type StepSubscriber interface {
	HandleStepCompleted(ctx context.Context, evt StepCompletedEvent) error
}
