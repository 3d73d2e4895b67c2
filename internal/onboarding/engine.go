package onboarding

import (
	"context"
	"time"

	"holding-backend/internal/apperr"
	"holding-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store is what the engine needs from persistence. Satisfied by
// repository.OnboardingRepo; tests use an in-memory fake.
type Store interface {
	ActiveFlowByUser(ctx context.Context, userID bson.ObjectID) (*models.UserOnboardingFlow, error)
	UserFlowByID(ctx context.Context, id bson.ObjectID) (*models.UserOnboardingFlow, error)
	CompleteUserFlow(ctx context.Context, id bson.ObjectID, at time.Time) error
	UserStepByID(ctx context.Context, id bson.ObjectID) (*models.UserOnboardingStep, error)
	UserStepByStep(ctx context.Context, userFlowID, stepID bson.ObjectID) (*models.UserOnboardingStep, error)
	UserStepsByFlow(ctx context.Context, userFlowID bson.ObjectID) ([]models.UserOnboardingStep, error)
	SaveUserStep(ctx context.Context, step *models.UserOnboardingStep) error
	FlowByID(ctx context.Context, id bson.ObjectID) (*models.OnboardingFlow, error)
	StepByID(ctx context.Context, id bson.ObjectID) (*models.OnboardingStep, error)
	StepsByFlow(ctx context.Context, flowID bson.ObjectID) ([]models.OnboardingStep, error)
}

// StepState is a user step joined with its template step.
type StepState struct {
	models.UserOnboardingStep
	Step models.OnboardingStep `json:"step"`
}

// FlowState is a user flow joined with its template and all step states.
type FlowState struct {
	models.UserOnboardingFlow
	Flow  models.OnboardingFlow `json:"flow"`
	Steps []StepState           `json:"steps"`
}

// Engine enforces step sequencing and completion propagation for one
// user's onboarding flow.
type Engine struct {
	store Store
	subs  []StepSubscriber
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Subscribe registers a reaction to LLM chat step completion.
func (e *Engine) Subscribe(sub StepSubscriber) {
	e.subs = append(e.subs, sub)
}

// ActiveFlow returns the user's non-completed flow instance with its
// template and step states joined in.
func (e *Engine) ActiveFlow(ctx context.Context, userID bson.ObjectID) (*FlowState, error) {
	userFlow, err := e.store.ActiveFlowByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userFlow == nil {
		return nil, apperr.NotFound("no active onboarding flow for this user")
	}
	return e.flowState(ctx, userFlow)
}

func (e *Engine) flowState(ctx context.Context, userFlow *models.UserOnboardingFlow) (*FlowState, error) {
	flow, err := e.store.FlowByID(ctx, userFlow.FlowID)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, apperr.NotFound("flow template missing")
	}
	steps, err := e.store.StepsByFlow(ctx, flow.ID)
	if err != nil {
		return nil, err
	}
	userSteps, err := e.store.UserStepsByFlow(ctx, userFlow.ID)
	if err != nil {
		return nil, err
	}
	byStep := make(map[bson.ObjectID]models.UserOnboardingStep, len(userSteps))
	for _, us := range userSteps {
		byStep[us.StepID] = us
	}

	state := &FlowState{UserOnboardingFlow: *userFlow, Flow: *flow}
	for _, step := range steps {
		state.Steps = append(state.Steps, StepState{
			UserOnboardingStep: byStep[step.ID],
			Step:               step,
		})
	}
	return state, nil
}

// StepState resolves one template step inside the user's active flow.
func (e *Engine) StepState(ctx context.Context, userID, stepID bson.ObjectID) (*StepState, error) {
	userFlow, err := e.store.ActiveFlowByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userFlow == nil {
		return nil, apperr.NotFound("no active onboarding flow for this user")
	}
	userStep, err := e.store.UserStepByStep(ctx, userFlow.ID, stepID)
	if err != nil {
		return nil, err
	}
	if userStep == nil {
		return nil, apperr.NotFound("step not found in user's onboarding flow")
	}
	step, err := e.store.StepByID(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, apperr.NotFound("step template missing")
	}
	return &StepState{UserOnboardingStep: *userStep, Step: *step}, nil
}

// UpdateStep merges data into the step payload (shallow key overwrite)
// and/or toggles completion. Timestamps follow the step state machine:
// started_at on first mutation, completed_at set when completion turns
// on and cleared when it turns off. Completing (or updating data on an
// already-completed) LLM chat step notifies subscribers, and completing
// the last open step completes the whole flow.
func (e *Engine) UpdateStep(ctx context.Context, userID, userStepID bson.ObjectID, data map[string]any, isCompleted *bool) (*models.UserOnboardingStep, error) {
	userStep, err := e.store.UserStepByID(ctx, userStepID)
	if err != nil {
		return nil, err
	}
	if userStep == nil {
		return nil, apperr.NotFound("step not found")
	}
	userFlow, err := e.store.UserFlowByID(ctx, userStep.UserFlowID)
	if err != nil {
		return nil, err
	}
	if userFlow == nil {
		return nil, apperr.NotFound("user flow not found for this step")
	}
	if userFlow.UserID != userID {
		return nil, apperr.Forbidden("not authorized to update this step")
	}

	now := e.now()
	completedNow := false

	if data != nil {
		if userStep.Data == nil {
			userStep.Data = make(map[string]any, len(data))
		}
		for k, v := range data {
			userStep.Data[k] = v
		}
		if userStep.StartedAt == nil {
			userStep.StartedAt = &now
		}
	}

	if isCompleted != nil {
		if *isCompleted && !userStep.IsCompleted {
			completedNow = true
			if userStep.StartedAt == nil {
				userStep.StartedAt = &now
			}
			if userStep.CompletedAt == nil {
				userStep.CompletedAt = &now
			}
		}
		if !*isCompleted {
			userStep.CompletedAt = nil
		}
		userStep.IsCompleted = *isCompleted
	}

	if err := e.store.SaveUserStep(ctx, userStep); err != nil {
		return nil, err
	}

	step, err := e.store.StepByID(ctx, userStep.StepID)
	if err != nil {
		return nil, err
	}

	if step != nil && step.Type == models.StepLLMChat && userStep.IsCompleted && (completedNow || data != nil) {
		evt := StepCompletedEvent{
			UserID:   userID,
			UserFlow: userFlow,
			UserStep: userStep,
			StepType: step.Type,
		}
		for _, sub := range e.subs {
			if err := sub.HandleStepCompleted(ctx, evt); err != nil {
				return nil, err
			}
		}
	}

	if completedNow {
		done, err := e.CheckFlowCompletion(ctx, userFlow.ID)
		if err != nil {
			return nil, err
		}
		if done {
			if err := e.CompleteFlow(ctx, userFlow); err != nil {
				return nil, err
			}
		}
	}

	return userStep, nil
}

// CheckFlowCompletion is true iff every child step is completed.
func (e *Engine) CheckFlowCompletion(ctx context.Context, userFlowID bson.ObjectID) (bool, error) {
	userSteps, err := e.store.UserStepsByFlow(ctx, userFlowID)
	if err != nil {
		return false, err
	}
	for _, us := range userSteps {
		if !us.IsCompleted {
			return false, nil
		}
	}
	return true, nil
}

// CompleteFlow marks the flow instance completed. Call only after
// CheckFlowCompletion reports true.
func (e *Engine) CompleteFlow(ctx context.Context, userFlow *models.UserOnboardingFlow) error {
	if userFlow.IsCompleted {
		return apperr.InvalidState("onboarding flow already completed")
	}
	return e.store.CompleteUserFlow(ctx, userFlow.ID, e.now())
}
