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

// OnboardingRepo covers the four onboarding collections: flow templates,
// template steps, per-user flow instances and per-user step instances.
type OnboardingRepo struct {
	flows     *mongo.Collection
	steps     *mongo.Collection
	userFlows *mongo.Collection
	userSteps *mongo.Collection
}

func NewOnboardingRepo() *OnboardingRepo {
	return &OnboardingRepo{
		flows:     database.GetCollection("onboarding_flows"),
		steps:     database.GetCollection("onboarding_steps"),
		userFlows: database.GetCollection("user_onboarding_flows"),
		userSteps: database.GetCollection("user_onboarding_steps"),
	}
}

// --- flow templates ---

func (r *OnboardingRepo) FlowByID(ctx context.Context, id bson.ObjectID) (*models.OnboardingFlow, error) {
	var flow models.OnboardingFlow
	err := r.flows.FindOne(ctx, bson.M{"_id": id}).Decode(&flow)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &flow, nil
}

func (r *OnboardingRepo) FlowByName(ctx context.Context, name string) (*models.OnboardingFlow, error) {
	var flow models.OnboardingFlow
	err := r.flows.FindOne(ctx, bson.M{"name": name}).Decode(&flow)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &flow, nil
}

func (r *OnboardingRepo) CreateFlow(ctx context.Context, flow *models.OnboardingFlow) error {
	flow.CreatedAt = time.Now()
	flow.UpdatedAt = time.Now()
	result, err := r.flows.InsertOne(ctx, flow)
	if err != nil {
		return err
	}
	flow.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *OnboardingRepo) CreateStep(ctx context.Context, step *models.OnboardingStep) error {
	result, err := r.steps.InsertOne(ctx, step)
	if err != nil {
		return err
	}
	step.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *OnboardingRepo) StepByID(ctx context.Context, id bson.ObjectID) (*models.OnboardingStep, error) {
	var step models.OnboardingStep
	err := r.steps.FindOne(ctx, bson.M{"_id": id}).Decode(&step)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &step, nil
}

func (r *OnboardingRepo) StepsByFlow(ctx context.Context, flowID bson.ObjectID) ([]models.OnboardingStep, error) {
	cursor, err := r.steps.Find(ctx, bson.M{"flow_id": flowID},
		options.Find().SetSort(bson.D{{Key: "order", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var steps []models.OnboardingStep
	if err := cursor.All(ctx, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// --- user flow instances ---

func (r *OnboardingRepo) CreateUserFlow(ctx context.Context, userFlow *models.UserOnboardingFlow) error {
	result, err := r.userFlows.InsertOne(ctx, userFlow)
	if err != nil {
		return err
	}
	userFlow.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// ActiveFlowByUser returns the user's single non-completed flow instance.
func (r *OnboardingRepo) ActiveFlowByUser(ctx context.Context, userID bson.ObjectID) (*models.UserOnboardingFlow, error) {
	var userFlow models.UserOnboardingFlow
	err := r.userFlows.FindOne(ctx, bson.M{"user_id": userID, "is_completed": false}).Decode(&userFlow)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &userFlow, nil
}

func (r *OnboardingRepo) UserFlowByID(ctx context.Context, id bson.ObjectID) (*models.UserOnboardingFlow, error) {
	var userFlow models.UserOnboardingFlow
	err := r.userFlows.FindOne(ctx, bson.M{"_id": id}).Decode(&userFlow)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &userFlow, nil
}

func (r *OnboardingRepo) CompleteUserFlow(ctx context.Context, id bson.ObjectID, at time.Time) error {
	_, err := r.userFlows.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_completed": true, "completed_at": at},
	})
	return err
}

// --- user step instances ---

func (r *OnboardingRepo) CreateUserStep(ctx context.Context, userStep *models.UserOnboardingStep) error {
	result, err := r.userSteps.InsertOne(ctx, userStep)
	if err != nil {
		return err
	}
	userStep.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *OnboardingRepo) UserStepByID(ctx context.Context, id bson.ObjectID) (*models.UserOnboardingStep, error) {
	var userStep models.UserOnboardingStep
	err := r.userSteps.FindOne(ctx, bson.M{"_id": id}).Decode(&userStep)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &userStep, nil
}

func (r *OnboardingRepo) UserStepByStep(ctx context.Context, userFlowID, stepID bson.ObjectID) (*models.UserOnboardingStep, error) {
	var userStep models.UserOnboardingStep
	err := r.userSteps.FindOne(ctx, bson.M{"user_flow_id": userFlowID, "step_id": stepID}).Decode(&userStep)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &userStep, nil
}

func (r *OnboardingRepo) UserStepsByFlow(ctx context.Context, userFlowID bson.ObjectID) ([]models.UserOnboardingStep, error) {
	cursor, err := r.userSteps.Find(ctx, bson.M{"user_flow_id": userFlowID})
	if err != nil {
		return nil, err
	}
	var userSteps []models.UserOnboardingStep
	if err := cursor.All(ctx, &userSteps); err != nil {
		return nil, err
	}
	return userSteps, nil
}

// SaveUserStep replaces the whole step document. The data payload is an
// open map, so a full replace keeps unknown keys intact.
func (r *OnboardingRepo) SaveUserStep(ctx context.Context, userStep *models.UserOnboardingStep) error {
	_, err := r.userSteps.ReplaceOne(ctx, bson.M{"_id": userStep.ID}, userStep)
	return err
}

// EnsureIndexes creates necessary indexes for the onboarding collections
func (r *OnboardingRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.userFlows.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_completed", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := r.userSteps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_flow_id", Value: 1}, {Key: "step_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
